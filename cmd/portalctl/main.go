// Command portalctl drives the scholarship portal's auth flows from a terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const appName = "portalctl"

var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// execute runs one invocation and always persists the session afterwards.
func execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{in: in, out: out, errOut: errOut}
	root := rootCmd(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		fmt.Fprintf(errOut, "Error: save session: %v\n", cerr)
	}
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

func rootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Scholarship portal account tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.open(cmd.Context())
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.apiBase, "api", "", "Auth API base URL (overrides config and PORTAL_API_BASE)")

	cmd.AddCommand(
		sessionCmd(a),
		loginCmd(a),
		logoutCmd(a),
		registerCmd(a),
		profileCmd(a),
		passwordCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}
