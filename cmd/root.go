// Package cmd implements the vquery command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/vquery/ajax"
	"github.com/chrisuehlinger/vquery/config"
	"github.com/chrisuehlinger/vquery/logging"
	"github.com/chrisuehlinger/vquery/loop"
	"github.com/chrisuehlinger/vquery/network"
)

// app carries the state shared by subcommands once PersistentPreRunE ran.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:           "vquery",
		Short:         "vquery runs $-style scripts against HTML documents.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./vquery.yaml)")

	rootCmd.AddCommand(newRunCmd(a), newFetchCmd(a), newConfigCmd(a))
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) initialize() error {
	v, err := config.New(a.cfgFile)
	if err != nil {
		return err
	}
	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logger)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) httpClient() (*network.Client, error) {
	return network.NewClient(
		network.WithTimeout(a.cfg.Network.Timeout),
		network.WithUserAgent(a.cfg.Network.UserAgent),
		network.WithMaxRedirects(a.cfg.Network.MaxRedirects),
		network.WithLogger(a.logger),
	)
}

func (a *app) ajaxClient(httpClient *network.Client, lp *loop.Loop) *ajax.Client {
	return ajax.NewClient(httpClient, lp,
		ajax.WithLogger(a.logger),
		ajax.WithDefaultTimeout(a.cfg.Ajax.DefaultTimeout),
		ajax.WithDefaultDataType(a.cfg.Ajax.DefaultDataType),
		ajax.WithRateLimit(a.cfg.Ajax.RateLimit, a.cfg.Ajax.RateBurst),
	)
}
