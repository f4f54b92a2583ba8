package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pulseboard/pulseboard/internal/alerting"
	"github.com/pulseboard/pulseboard/internal/clock"
	"github.com/pulseboard/pulseboard/internal/condition"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/notifier"
	"github.com/pulseboard/pulseboard/internal/storage"
	"github.com/pulseboard/pulseboard/pkg/config"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "pulseboard-server",
	Short: "PulseBoard Server - signal-set alerting engine",
	Long: `PulseBoard Server watches signal sets for new records, evaluates
alert conditions against them, and sends email/SMS notifications as
alerts trigger and recover.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.VersionString())
	},
}

var testAlertCmd = &cobra.Command{
	Use:   "test-alert <alert-id>",
	Short: "Send a test notification for an alert",
	Args:  cobra.ExactArgs(1),
	RunE:  runTestAlert,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(testAlertCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfigOrDefault() (*Config, error) {
	if configFile != "" {
		return LoadConfig(configFile)
	}
	return DefaultConfig(), nil
}

func openAlertStore(cfg *Config) (*storage.SQLiteStorage, error) {
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

func buildDispatcher(ctx context.Context, cfg *Config) (*notifier.Dispatcher, error) {
	var email notifier.EmailSender
	var sms notifier.SMSSender

	if cfg.Email.Enabled {
		e, err := notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		})
		if err != nil {
			return nil, fmt.Errorf("email notifier: %w", err)
		}
		email = e
	}

	if cfg.SMS.Enabled {
		s, err := notifier.NewSMSNotifier(ctx, notifier.SMSConfig{
			Region:          cfg.SMS.Region,
			AccessKeyID:     cfg.SMS.AccessKeyID,
			SecretAccessKey: cfg.SMS.SecretAccessKey,
			SenderID:        cfg.SMS.SenderID,
		})
		if err != nil {
			return nil, fmt.Errorf("sms notifier: %w", err)
		}
		sms = s
	}

	rateLimit := notifier.DefaultRateLimitConfig()
	if cfg.Alerting.RateLimit > 0 {
		rateLimit.MaxPerWindow = cfg.Alerting.RateLimit
	}

	dispatcher := notifier.NewDispatcherWithRateLimit(email, sms, rateLimit)
	dispatcher.SetMaxRecipients(cfg.Alerting.MaxRecipients)
	return dispatcher, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigOrDefault()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Verbose = verbose

	store, err := openAlertStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Printf("database initialized at %s", cfg.Database.Path)

	records := storage.NewClickHouseStorage(&storage.ClickHouseConfig{
		Addresses:     cfg.Records.Addresses,
		Database:      cfg.Records.Database,
		Username:      cfg.Records.Username,
		Password:      cfg.Records.Password,
		Compression:   cfg.Records.Compression,
		RetentionDays: cfg.Records.RetentionDays,
	})
	if err := records.Open(); err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer records.Close()
	if err := records.Migrate(); err != nil {
		return fmt.Errorf("migrate record store: %w", err)
	}
	log.Printf("record store connected at %v", cfg.Records.Addresses)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher, err := buildDispatcher(ctx, cfg)
	if err != nil {
		return err
	}

	registry := alerting.NewRegistry(alerting.Deps{
		Clock:     clock.NewSystem(),
		Store:     store.Alerts(),
		AuditLog:  store.AlertLog(),
		Evaluator: condition.NewEvaluator(records, cfg.Alerting.WindowSize),
		Notifier:  dispatcher,
	})
	if err := registry.Init(ctx); err != nil {
		return fmt.Errorf("init alerting: %w", err)
	}
	defer registry.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	log.Printf("starting %s", config.VersionString())

	g, ctx := errgroup.WithContext(ctx)

	watcher := alerting.NewWatcher(registry, records, cfg.Alerting.PollInterval)
	g.Go(func() error {
		if err := watcher.Run(ctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})

	if cfg.Metrics.Enabled {
		metricsSrv := metrics.NewServer(cfg.Metrics.Address)
		g.Go(metricsSrv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}

func runTestAlert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigOrDefault()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := openAlertStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	id := args[0]
	alertConfig, err := store.Alerts().GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load alert: %w", err)
	}
	if alertConfig == nil {
		return fmt.Errorf("alert not found: %s", id)
	}

	dispatcher, err := buildDispatcher(ctx, cfg)
	if err != nil {
		return err
	}

	alert := alerting.New(alertConfig, alerting.Deps{
		Clock:    clock.NewSystem(),
		Store:    store.Alerts(),
		AuditLog: store.AlertLog(),
		Notifier: dispatcher,
	})
	alert.Test(ctx)

	fmt.Printf("test notification sent for alert %s (%s)\n", alertConfig.Name, id)
	return nil
}
