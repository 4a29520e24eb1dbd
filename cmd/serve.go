package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/tutorbar/internal/logging"
	"github.com/abhisek/tutorbar/internal/notify"
	"github.com/abhisek/tutorbar/internal/server"
	"github.com/abhisek/tutorbar/internal/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local statistics and signal service",
	Long: `Serve the learning progress endpoint polled by the panel, answer logging,
and the /signals event stream. Point the panel at it with
TUTORBAR_SIGNALS_URL=http://<addr>/signals.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		logger, err := logging.New(logging.Config{Development: cfg.Logging.Development, File: cfg.Logging.File})
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(server.Options{
			Tracker: tracker.New(tracker.Options{}),
			Bus:     notify.NewBus(notify.BusConfig{Logger: logger.Named("bus")}),
			Logger:  logger,
		})
		if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
			logger.Error("server stopped", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
