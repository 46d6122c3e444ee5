// Command tracker runs the Experiment Tracker: it waits for NODES nodes
// to register, enumerates the experiment matrix, then drives each
// experiment to completion and writes a JSON report per run.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andr35/DS2-Project/internal/logging"
	"github.com/andr35/DS2-Project/internal/schedule"
	"github.com/andr35/DS2-Project/internal/trackerapi"
	"github.com/andr35/DS2-Project/internal/transport"
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "run the gossip experiment tracker",
	Long: `tracker waits for nodes to register, enumerates the experiment matrix
described by its environment configuration, and drives each experiment to
completion, writing one JSON report per run.`,
	RunE: runTracker,
}

// Execute runs the tracker command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func requiredInt(name string) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return 0, fmt.Errorf("tracker: %s is required", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("tracker: %s must be an integer: %w", name, err)
	}
	return n, nil
}

func requiredInt64(name string) (int64, error) {
	v := os.Getenv(name)
	if v == "" {
		return 0, fmt.Errorf("tracker: %s is required", name)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("tracker: %s must be an integer: %w", name, err)
	}
	return n, nil
}

func loadGeneratorConfig() (trackerapi.GeneratorConfig, error) {
	var cfg trackerapi.GeneratorConfig
	var err error

	if cfg.N, err = requiredInt("NODES"); err != nil {
		return cfg, err
	}
	if cfg.DurationMs, err = requiredInt64("DURATION"); err != nil {
		return cfg, err
	}
	if cfg.NumberOfExperiments, err = requiredInt("EXPERIMENTS"); err != nil {
		return cfg, err
	}
	if cfg.Repetitions, err = requiredInt("REPETITIONS"); err != nil {
		return cfg, err
	}
	if cfg.InitialSeed, err = requiredInt64("INITIAL_SEED"); err != nil {
		return cfg, err
	}
	if cfg.GossipDeltaMs, err = requiredInt64("GOSSIP_DELTA"); err != nil {
		return cfg, err
	}
	if cfg.MinFailureRounds, err = requiredInt("MIN_FAILURE_ROUNDS"); err != nil {
		return cfg, err
	}
	if cfg.MaxFailureRounds, err = requiredInt("MAX_FAILURE_ROUNDS"); err != nil {
		return cfg, err
	}
	if cfg.MissDeltaRounds, err = requiredInt("MISS_DELTA_ROUNDS"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runTracker(cmd *cobra.Command, args []string) error {
	genCfg, err := loadGeneratorConfig()
	if err != nil {
		return err
	}

	timeBetweenMs, err := requiredInt64("TIME_BETWEEN_EXPERIMENTS")
	if err != nil {
		return err
	}
	reportDir := os.Getenv("REPORT_PATH")
	if reportDir == "" {
		return fmt.Errorf("tracker: REPORT_PATH is required")
	}

	host := os.Getenv("HOST")
	if host == "" {
		host = "0.0.0.0"
	}
	port := os.Getenv("PORT")
	if port == "" {
		return fmt.Errorf("tracker: PORT is required")
	}

	debug := os.Getenv("DEBUG") != ""
	logger := logging.New(debug)
	defer logger.Sync()

	logger.Info("starting tracker",
		zap.Int("nodes", genCfg.N),
		zap.Int64("duration_ms", genCfg.DurationMs),
		zap.Int("experiments", genCfg.NumberOfExperiments),
		zap.Int("repetitions", genCfg.Repetitions))

	sched := schedule.New()
	defer sched.Stop()

	client := transport.NewTrackerClient(logger)
	tr := trackerapi.NewTracker(logger, client, sched, genCfg, time.Duration(timeBetweenMs)*time.Millisecond, reportDir)

	receiver := trackerapi.NewTrackerReceiver(tr)
	server, err := transport.NewServer(fmt.Sprintf("%s:%s", host, port), transport.TrackerServiceName, logger, receiver)
	if err != nil {
		return fmt.Errorf("tracker: create server: %w", err)
	}
	if err := server.Serve(); err != nil {
		return fmt.Errorf("tracker: serve: %w", err)
	}
	defer server.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("tracker listening, waiting for registrations", zap.Int("port", server.Port()))

	select {
	case <-tr.Done():
		logger.Info("experiment run complete")
	case <-ctx.Done():
		logger.Info("tracker interrupted before completion")
	}
	return nil
}

func main() {
	Execute()
}
