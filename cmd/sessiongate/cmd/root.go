package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmcleod/sessiongate/internal/config"
	"github.com/jmcleod/sessiongate/internal/logging"
	"github.com/jmcleod/sessiongate/internal/xdg"
)

var (
	configFile string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sessiongate",
	Short: "sessiongate signs you in to a token-issuing backend",
	Long: `A command line host for the sessiongate session core: sign up, log in,
load the authenticated dashboard and log out. The session is kept in an
encrypted profile under the XDG data directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		fileOpt := config.WithOptionalConfigFile(xdg.ConfigFile())
		if configFile != "" {
			fileOpt = config.WithConfigFile(configFile)
		}
		var err error
		cfg, err = config.Load(fileOpt, config.WithFlags(cmd.Flags()))
		if err != nil {
			return err
		}
		logger, err = logging.New(cmd.ErrOrStderr(), logging.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
		})
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default "+xdg.ConfigFile()+")")
	pf.String("base-url", "", "Backend base URL")
	pf.String("profile-dir", "", "Profile directory (default "+xdg.DataDir()+")")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")
	pf.Duration("timeout", 0, "Per-request timeout (0 means none)")
}
