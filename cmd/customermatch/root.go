package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/customermatch/internal/config"
	"github.com/JonMunkholm/customermatch/internal/core"
	"github.com/JonMunkholm/customermatch/internal/logging"
)

// app carries what every subcommand needs after startup.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var envFile string

	root := &cobra.Command{
		Use:           "customermatch",
		Short:         "Normalize customer contact CSVs for ad-platform matching",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Variables already set in the environment win over the file.
			envLoaded := godotenv.Load(envFile) == nil

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			// stdout may carry CSV, so logs always go to stderr.
			a.logger = logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
			a.logger.Debug("configuration loaded", "env_file", envLoaded, "config", cfg.String())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Env file to load before reading configuration")

	root.AddCommand(newNormalizeCmd(a), newServeCmd(a), newZipsCmd(a))

	return root
}

// printError writes err to w, with its support code when it is user-facing.
func printError(w io.Writer, err error) {
	if core.IsUserFacing(err) {
		fmt.Fprintln(w, "error:", core.FormatUserError(err))
		return
	}
	fmt.Fprintln(w, "error:", err)
}
