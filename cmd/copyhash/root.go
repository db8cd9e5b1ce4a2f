package main

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anatolykoptev/go-copyhash/internal/config"
	"github.com/anatolykoptev/go-copyhash/internal/logging"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	settings   *config.Settings
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:               "copyhash",
		Short:             "Match images against a catalog of known copyrighted images",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: ./copyhash.yaml or ~/.config/copyhash/copyhash.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")

	root.AddCommand(
		a.hashCommand(),
		a.compareCommand(),
		a.exifCommand(),
		a.reportCommand(),
	)
	return root
}

// setup binds the executing command's flags to their config keys
// (log-level -> log_level), loads settings and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" {
			return
		}
		bindErr = errors.Join(bindErr, a.v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f))
	})
	if bindErr != nil {
		return bindErr
	}

	settings, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.settings = settings

	slog.SetDefault(logging.New(cmd.ErrOrStderr(), settings.LogFormat, settings.LogLevel))
	return nil
}

// addMatchingFlags registers the flags that override matching settings.
func addMatchingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("algorithms", nil, "hash algorithms in order (average, perception, difference, wavelet)")
	f.Int("workers", 1, "records processed concurrently")
	f.String("cache", "", "SQLite file caching computed hashes")
	f.String("metrics-file", "", "write Prometheus metrics to this file when done")
}
