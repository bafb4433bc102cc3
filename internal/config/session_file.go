package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SavedSession is the on-disk form of the client's cookies for one API base.
type SavedSession struct {
	APIBase string        `yaml:"api_base"`
	SavedAt time.Time     `yaml:"saved_at"`
	Cookies []SavedCookie `yaml:"cookies"`
}

// SavedCookie keeps the fields a jar needs to send the cookie back.
type SavedCookie struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// LoadSession reads the cookies saved for apiBase. A missing file, or one saved for
// another API, yields no cookies.
func LoadSession(path, apiBase string) ([]*http.Cookie, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var saved SavedSession
	if err := yaml.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("parse session file %s: %w", path, err)
	}
	if saved.APIBase != apiBase {
		return nil, nil
	}
	cookies := make([]*http.Cookie, 0, len(saved.Cookies))
	for _, c := range saved.Cookies {
		if c.Name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return cookies, nil
}

// SaveSession replaces the session file. No cookies removes it.
func SaveSession(path, apiBase string, cookies []*http.Cookie, now time.Time) error {
	if path == "" {
		return nil
	}
	if len(cookies) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}
	saved := SavedSession{APIBase: apiBase, SavedAt: now.UTC()}
	for _, c := range cookies {
		saved.Cookies = append(saved.Cookies, SavedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := yaml.Marshal(saved)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
