package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quick-fold/quickfold-customer-app/internal/client"
	"github.com/quick-fold/quickfold-customer-app/internal/session"
	"github.com/quick-fold/quickfold-customer-app/pkg/httpclient"
	"github.com/quick-fold/quickfold-customer-app/pkg/logger"
)

const cliName = "quickfold-cli"

// NewRootCmd creates the root command for the QuickFold CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quickfold",
		Short: "QuickFold customer account client",
		Long: `quickfold signs you in to QuickFold and keeps your session on this
device so later commands can act on your behalf.`,
		SilenceUsage: true,
	}

	registerGlobalFlags(cmd.PersistentFlags())

	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// deps are the collaborators a subcommand needs, built from the merged config.
type deps struct {
	cfg   *cliConfig
	api   *client.API
	store *session.SQLiteStore
	auth  *client.AuthService
}

func openDeps(cmd *cobra.Command) (*deps, error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}

	log := logger.NewWithWriter(cliName, cfg.LogLevel, cmd.ErrOrStderr())

	store, err := session.Open(cmd.Context(), cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.Timeout
	api := client.NewAPI(cfg.Server, httpCfg, log)

	return &deps{
		cfg:   cfg,
		api:   api,
		store: store,
		auth:  client.NewAuthService(api, session.NewCache(store, log), log),
	}, nil
}

func (d *deps) Close() {
	d.api.Close()
	_ = d.store.Close()
}

// withDeps wraps a subcommand body with dependency setup and teardown.
func withDeps(run func(cmd *cobra.Command, d *deps) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		d, err := openDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()
		return run(cmd, d)
	}
}
