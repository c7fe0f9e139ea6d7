package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jxzhangjhu/guidance/pkg/config"
)

var version = "dev"

const envPrefix = "GUIDANCE"

// app carries state shared by all subcommands.
type app struct {
	v        *viper.Viper
	resolver config.Resolver
	cfg      *config.Config
	logger   *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *app {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return &app{v: v}
}

func newRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "guidance",
		Short:         "Rate-limited, retrying, caching completion client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (optional)")
	root.PersistentFlags().String("log-level", "", "logging level: debug|info|warn|error")
	root.PersistentFlags().String("log-format", "", "logging format: text|json")
	_ = a.v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = a.v.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(
		newCompleteCmd(a),
		newCacheCmd(a),
		newStatsCmd(a),
		newTokensCmd(a),
	)
	return root
}
