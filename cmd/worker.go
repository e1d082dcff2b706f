package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reimbursehq/reimbursement-service/internal/notification"
	"github.com/reimbursehq/reimbursement-service/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start worker pools",
	Long:  `Start and manage worker pools for background processing`,
}

// Notification worker command
var notificationWorkerCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Start notification worker pool",
	Long:  `Start the notification worker pool for delivering status-change notifications`,
	Run: func(cmd *cobra.Command, args []string) {
		startNotificationWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
)

func startNotificationWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(config.Observability.Logging.Format, config.Observability.Logging.Level)
	appLogger := logger.LoggerWrapper()

	dispatcherConfig := notification.Config{
		MaxWorkers:   getIntFlag(maxWorkers, config.Notification.MaxWorkers),
		JobQueueSize: getIntFlag(jobQueueSize, config.Notification.JobQueueSize),
	}

	appLogger.Info("starting notification worker",
		"max_workers", dispatcherConfig.MaxWorkers,
		"job_queue_size", dispatcherConfig.JobQueueSize)

	dispatcher := notification.NewDispatcher(dispatcherConfig, notification.NewLogSender(appLogger), appLogger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	appLogger.Info("notification worker is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	appLogger.Info("received signal, shutting down notification worker", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		dispatcher.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		appLogger.Info("notification worker shutdown complete")
	case <-ctx.Done():
		appLogger.Warn("shutdown timeout reached, forcing exit")
	}
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	notificationWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	notificationWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")

	workerCmd.AddCommand(notificationWorkerCmd)
}
