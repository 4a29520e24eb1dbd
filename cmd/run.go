package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/tutorbar/internal/app"
	"github.com/abhisek/tutorbar/internal/config"
	"github.com/abhisek/tutorbar/internal/logging"
	"github.com/abhisek/tutorbar/internal/notify"
	"github.com/abhisek/tutorbar/internal/progress"
	"github.com/abhisek/tutorbar/internal/stats"
)

// runApp loads configuration, builds the panel dependencies, and launches
// the TUI.
func runApp(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logFile := cfg.Logging.File
	if logFile == "" {
		if logFile, err = logging.DefaultFile(); err != nil {
			return fmt.Errorf("resolve log file: %w", err)
		}
	}
	logger, err := logging.New(logging.Config{Development: cfg.Logging.Development, File: logFile})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	opts := app.Options{
		Progress: progress.Options{
			Fetcher: stats.NewClient(cfg.Panel.Endpoint, nil),
			Config:  panelConfig(cfg.Panel),
		},
		StartVisible: cfg.Panel.StartVisible,
		Status:       endpointHost(cfg.Panel.Endpoint),
		Logger:       logger,
	}

	if cfg.Signals.URL != "" {
		opts.Progress.Subscriber = notify.NewStreamSubscriber(notify.StreamConfig{
			URL:    cfg.Signals.URL,
			Logger: logger.Named("signals"),
		})
		opts.Publisher = notify.NewHTTPPublisher(cfg.Signals.URL, nil)
	} else {
		// Without a signal service the demo keys drive the panel directly.
		bus := notify.NewBus(notify.BusConfig{Logger: logger.Named("signals")})
		opts.Progress.Subscriber = bus
		opts.Publisher = bus
	}

	logger.Info("starting",
		zap.String("endpoint", cfg.Panel.Endpoint),
		zap.String("signals", cfg.Signals.URL),
	)
	return app.Run(opts)
}

func panelConfig(c config.PanelConfig) progress.Config {
	return progress.Config{
		RefreshInterval: c.RefreshInterval,
		ClockInterval:   c.ClockInterval,
		BadgeDuration:   c.BadgeDuration,
		FetchTimeout:    c.FetchTimeout,
		TopicWidth:      c.TopicWidth,
	}
}

func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Host
}
