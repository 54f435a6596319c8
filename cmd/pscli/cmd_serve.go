// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pscli/pscli/internal/issue"
	"github.com/pscli/pscli/internal/sshserver"
)

func newServeCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var (
		address string
		hostKey string
		idle    time.Duration
	)
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Share the prompt over SSH",
		Long: `Share the prompt over SSH.

Users log in with the protection password. A session without a command
gets the interactive prompt; "ssh -p PORT host calc 2 3" runs one
command and exits with its status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := app.open(ctx, flags)
			if err != nil {
				return err
			}
			defer svc.Close()

			cfg := sshserver.DefaultConfig()
			cfg.Address = svc.loaded.Settings.Serve.Address
			if address != "" {
				cfg.Address = address
			}
			cfg.HostKeyPath = hostKey
			cfg.IdleTimeout = idle

			srv, err := sshserver.New(cfg, svc.d, svc.passwords,
				sshserver.WithLogger(svc.charm.WithPrefix("serve")))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			if svc.watchEnabled(flags) {
				go runWatcher(ctx, app, svc)
			}

			if err := srv.Start(ctx); err != nil {
				if rendered, renderErr := issue.Get(issue.ServeFailedId).Render("dark"); renderErr == nil {
					fmt.Fprint(app.stderr, rendered)
				}
				return issue.NewErrorContext().
					WithOperation("start SSH server").
					WithResource(cfg.Address).
					WithSuggestion("Pick a free port with --address 127.0.0.1:0").
					Wrap(err).
					BuildError()
			}
			fmt.Fprintf(app.stdout, "%s Serving on %s (Ctrl+C to stop)\n",
				SuccessStyle.Render("✓"), CmdStyle.Render(srv.Address()))

			select {
			case <-ctx.Done():
			case err := <-srv.Err():
				if err != nil {
					_ = srv.Stop()
					return err
				}
			}
			return srv.Stop()
		},
	}
	serveCmd.Flags().StringVar(&address, "address", "", "listen address (default from settings serve.address)")
	serveCmd.Flags().StringVar(&hostKey, "host-key", "", "PEM host key file (default: ephemeral key)")
	serveCmd.Flags().DurationVar(&idle, "idle-timeout", 0, "close idle sessions after this long")
	return serveCmd
}
