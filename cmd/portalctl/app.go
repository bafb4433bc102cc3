package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scholarportal.org/internal/config"
	"scholarportal.org/internal/session"
	"scholarportal.org/internal/toast"
)

var errInputClosed = errors.New("input closed")

// app is the state shared by the commands of one invocation.
type app struct {
	configPath string
	apiBase    string

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	reader *bufio.Reader

	cfg    *config.Client
	store  *session.Store
	toasts *toast.Channel
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.LoadClient(a.configPath)
	if err != nil {
		return err
	}
	if a.apiBase != "" {
		cfg.APIBase = strings.TrimRight(a.apiBase, "/")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	cookies, err := config.LoadSession(cfg.SessionFile, cfg.APIBase)
	if err != nil {
		return err
	}
	store, err := session.Open(ctx, cfg.APIBase,
		session.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		session.WithCookies(cookies),
		session.WithUserAgent(cfg.UserAgent+"/"+Version),
	)
	if err != nil {
		return err
	}
	a.cfg, a.store, a.toasts = cfg, store, toast.New()
	return nil
}

// close waits for detached logout work and writes the cookie jar back to disk.
func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	_ = a.store.Close()
	a.toasts.Close()
	return config.SaveSession(a.cfg.SessionFile, a.cfg.APIBase, a.store.Cookies(), time.Now())
}

// notifier mirrors every toast onto stderr as it is raised.
func (a *app) notifier() toast.Notifier {
	return stderrToasts{ch: a.toasts, w: a.errOut}
}

var toastMarkers = map[toast.Kind]string{
	toast.KindSuccess: "✓",
	toast.KindError:   "✗",
	toast.KindInfo:    "i",
}

type stderrToasts struct {
	ch *toast.Channel
	w  io.Writer
}

func (s stderrToasts) Add(kind toast.Kind, text string) toast.Toast {
	t := s.ch.Add(kind, text)
	fmt.Fprintf(s.w, "%s %s\n", toastMarkers[kind], text)
	return t
}

// ask prints label and reads one line of input.
func (a *app) ask(label string) (string, error) {
	if a.reader == nil {
		a.reader = bufio.NewReader(a.in)
	}
	fmt.Fprintf(a.out, "%s: ", label)
	line, err := a.reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if line == "" {
			fmt.Fprintln(a.out)
			return "", errInputClosed
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printIdentity(w io.Writer, id session.Identity) {
	fmt.Fprintf(w, "%s <%s> (%s)\n", id.DisplayName(), id.Email, id.Role)
}
