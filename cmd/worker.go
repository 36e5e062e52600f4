package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adityamishra28203/healthvault/internal/consent"
	consentpg "github.com/adityamishra28203/healthvault/internal/consent/postgres"
	"github.com/adityamishra28203/healthvault/internal/core/events"
	"github.com/adityamishra28203/healthvault/pkg/logger"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers such as the consent expiry sweeper.`,
}

var sweepWorkerCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Start the consent expiry sweeper",
	Long:  `Periodically transitions overdue pending and granted consents to expired.`,
	Run: func(cmd *cobra.Command, args []string) {
		startSweepWorker()
	},
}

var (
	sweepInterval time.Duration
	sweepOnce     bool
)

func init() {
	sweepWorkerCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "Override the configured sweep interval")
	sweepWorkerCmd.Flags().BoolVar(&sweepOnce, "once", false, "Run a single sweep and exit")

	workerCmd.AddCommand(sweepWorkerCmd)
}

func startSweepWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(os.Getenv("APP_ENV"))
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize gorm: %v\n", err)
		os.Exit(1)
	}

	eventBus := events.NewEventBus(lg)
	svc := consent.NewService(consentpg.NewConsentRepository(gormDB), eventBus, lg).
		WithDefaultExpiry(time.Duration(config.Consent.DefaultExpiryDays) * 24 * time.Hour).
		WithSweepBatch(config.Consent.SweepBatchSize)

	interval := config.Consent.SweepInterval
	if sweepInterval > 0 {
		interval = sweepInterval
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	runSweep := func(ctx context.Context) {
		expired, err := svc.ExpireConsents(ctx)
		if err != nil {
			lg.Error("consent expiry sweep failed", "error", err)
			return
		}
		lg.Info("consent expiry sweep done", "expired", expired)
	}

	ctx := context.Background()
	if sweepOnce {
		runSweep(ctx)
		return
	}

	lg.Info("consent expiry sweeper started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	runSweep(ctx)
	for {
		select {
		case <-ticker.C:
			runSweep(ctx)
		case sig := <-sigChan:
			lg.Info("received signal, shutting down sweeper", "signal", sig)
			return
		}
	}
}
