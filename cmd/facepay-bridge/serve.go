package main

import (
	"fmt"
	"strings"

	"github.com/parsec/wechat-face-payment/facepay"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the method channel over HTTP backed by the simulated SDK",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, cfg, err := setup(cmd)
			if err != nil {
				return err
			}

			app := facepay.NewApp(logger, cfg, cfg.Simulator.NewSimulator())
			if err := app.Start(); err != nil {
				return fmt.Errorf("starting app: %w", err)
			}

			<-cmd.Context().Done()

			app.Shutdown()
			return nil
		},
	}
}

// setup loads the configuration named by --config and builds the logger.
func setup(cmd *cobra.Command) (*slog.Logger, *facepay.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := facepay.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}

	levelName, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(levelName))); err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", levelName, err)
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return logger, cfg, nil
}
