package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-vehicle-market/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	output      string
	banner      bool
	dumpMetrics bool
}

// cli carries the lazily built app to every subcommand.
type cli struct {
	opts rootOptions
	app  *app
	root *cobra.Command
}

func newCLI() *cli {
	c := &cli{}
	c.root = c.rootCmd()
	return c
}

// execute runs the selected command and releases the app even when it fails.
func (c *cli) execute(ctx context.Context) error {
	err := c.root.ExecuteContext(ctx)
	if c.app != nil {
		if c.opts.dumpMetrics {
			if dumpErr := c.app.dumpMetrics(c.root.ErrOrStderr()); dumpErr != nil && err == nil {
				err = dumpErr
			}
		}
		c.app.close()
	}
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "marketctl",
		Short:         "Command line client for the vehicle marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			if c.opts.banner {
				displayAppname(cfg.GetAppName())
			}
			c.app, err = newApp(cmd.Context(), cfg, c.opts.output, cmd.OutOrStdout())
			return err
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&c.opts.output, "output", "o", "json", "output format: json or yaml")
	flags.BoolVar(&c.opts.banner, "banner", false, "print the application banner")
	flags.BoolVar(&c.opts.dumpMetrics, "metrics", false, "write collected metrics to stderr on exit")

	cmd.AddCommand(
		c.loginCmd(),
		c.signupCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.refreshCmd(),
		c.deleteAccountCmd(),
		c.resetPasswordCmd(),
		c.vehiclesCmd(),
		c.favoriteCmd(),
		c.reviewCmd(),
		c.taxonomyCmd(),
		c.chatCmd(),
		c.adminCmd(),
	)
	return cmd
}

func (c *cli) print(v any) error {
	return c.app.out(v)
}

func (c *cli) requireSignedIn() error {
	if !c.app.session.State().SignedIn() {
		return fmt.Errorf("not signed in, run marketctl login first")
	}
	return nil
}
