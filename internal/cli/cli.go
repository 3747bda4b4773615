// ============================================================================
// clusterqueue CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: cobra-based command line interface for running the queue daemon
// and driving it from the command line.
//
// Command Structure:
//   clusterqueue                    # Root command
//   ├── run                        # Start the queue daemon
//   │   └── --config, -c          # Specify config file
//   ├── submit                     # Submit jobs from a JSON file
//   │   └── --file, -f            # Specify job JSON file
//   ├── cancel <job-id>            # Cancel a job
//   ├── drain                      # Toggle the drain flag
//   └── status                     # View system status
//
// run Command:
//   1. Load config file
//   2. Build the App (queue, worker pool, processor, replication)
//   3. Start it (which replays RecoverJobs())
//   4. Start the metrics HTTP server if enabled
//   5. Listen for SIGINT/SIGTERM and shut down gracefully
//
// ============================================================================

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nimbusvm/clusterqueue/internal/jobqueue"
	"github.com/nimbusvm/clusterqueue/internal/metrics"
	"github.com/nimbusvm/clusterqueue/internal/rpctransport"
	"github.com/nimbusvm/clusterqueue/pkg/types"
)

var configFile string

// BuildCLI constructs the root cobra command.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clusterqueue",
		Short: "clusterqueue: a crash-recoverable cluster job queue",
		Long: `clusterqueue runs a persistent, priority-ordered job queue with:
- file-backed durability and replication
- a dependency-aware job processor
- Prometheus metrics`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildSubmitCommand())
	rootCmd.AddCommand(buildCancelCommand())
	rootCmd.AddCommand(buildDrainCommand())
	rootCmd.AddCommand(buildStatusCommand())
	rootCmd.AddCommand(buildWaitCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the clusterqueue daemon",
		Long:  "Load the config, start the queue, worker pool and processor, and serve until signaled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(configFile)
		},
	}
	return cmd
}

func runDaemon(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.Default()
	app, err := NewApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start app: %w", err)
	}

	if cfg.Metrics.Enabled {
		go func() {
			reg, ok := prometheus.DefaultRegisterer.(*prometheus.Registry)
			if !ok {
				reg = prometheus.NewRegistry()
			}
			if err := metrics.StartServer(cfg.Metrics.Port, reg); err != nil {
				log.Printf("metrics server error: %v\n", err)
			}
		}()
	}

	if cfg.Cluster.ListenAddr != "" {
		lis, err := net.Listen("tcp", cfg.Cluster.ListenAddr)
		if err != nil {
			log.Printf("cluster listener not started: %v\n", err)
		} else {
			grpcServer := rpctransport.NewServer(newGRPCServer(app))
			go func() {
				if err := grpcServer.Serve(lis); err != nil {
					log.Printf("gRPC server error: %v\n", err)
				}
			}()
			defer grpcServer.GracefulStop()
		}
	}

	log.Println("clusterqueue started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("received shutdown signal, draining...")
	app.Stop()
	log.Println("clusterqueue stopped")
	return nil
}

func buildSubmitCommand() *cobra.Command {
	var jobFile string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit jobs from a JSON file",
		Long:  "Read a list of opcode-chain definitions from a JSON file and submit each as a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobFile == "" {
				return fmt.Errorf("job file is required (use --file or -f)")
			}
			return submitJobs(jobFile)
		},
	}

	cmd.Flags().StringVarP(&jobFile, "file", "f", "", "JSON file containing job definitions")
	cmd.MarkFlagRequired("file")

	return cmd
}

// jobDefinition is the submit file's per-job shape: an ordered opcode chain.
type jobDefinition struct {
	Ops []types.OpInput `json:"ops"`
}

func submitJobs(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read job file: %w", err)
	}

	var defs []jobDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("failed to parse job file: %w", err)
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := NewApp(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start app: %w", err)
	}
	defer app.Stop()

	submitted := 0
	for _, def := range defs {
		id, err := app.Submit(def.Ops)
		if err != nil {
			log.Printf("failed to submit job: %v\n", err)
			continue
		}
		log.Printf("submitted job %d\n", id)
		submitted++
	}

	log.Printf("submitted %d/%d jobs\n", submitted, len(defs))
	return nil
}

func buildCancelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cancelJob(args[0])
		},
	}
	return cmd
}

func cancelJob(jobIDArg string) error {
	var id int64
	if _, err := fmt.Sscanf(jobIDArg, "%d", &id); err != nil {
		return fmt.Errorf("invalid job id %q: %w", jobIDArg, err)
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app, err := NewApp(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	defer app.Queue.Close()

	msg, err := app.Queue.CancelJob(types.JobID(id))
	if err != nil {
		return fmt.Errorf("failed to cancel job %d: %w", id, err)
	}
	log.Println(msg)
	return nil
}

func buildDrainCommand() *cobra.Command {
	var undrain bool
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Toggle the queue's drain flag",
		Long:  "Reject new submissions (or, with --undrain, resume accepting them)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setDrain(!undrain)
		},
	}
	cmd.Flags().BoolVar(&undrain, "undrain", false, "resume accepting new submissions")
	return cmd
}

func setDrain(drain bool) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app, err := NewApp(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	defer app.Queue.Close()

	if err := app.Queue.SetDrainFlag(drain); err != nil {
		return fmt.Errorf("failed to set drain flag: %w", err)
	}
	log.Printf("drain flag set to %v\n", drain)
	return nil
}

func buildWaitCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "wait <job-id>",
		Short: "Block until a job's status changes",
		Long:  "Long-poll a job's status field until it changes or timeout elapses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return waitForJob(args[0], timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "maximum time to wait")
	return cmd
}

func waitForJob(jobIDArg string, timeout time.Duration) error {
	var id int64
	if _, err := fmt.Sscanf(jobIDArg, "%d", &id); err != nil {
		return fmt.Errorf("invalid job id %q: %w", jobIDArg, err)
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app, err := NewApp(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	defer app.Queue.Close()

	fields := []jobqueue.Field{jobqueue.FieldStatus}
	result, err := app.Queue.WaitForJobChanges(types.JobID(id), fields, nil, 0, timeout)
	switch {
	case errors.Is(err, jobqueue.ErrJobNotChanged):
		log.Printf("job %d: no change within %s\n", id, timeout)
		return nil
	case err != nil:
		return fmt.Errorf("failed to wait for job %d: %w", id, err)
	case result == nil:
		log.Printf("job %d: no longer exists\n", id)
		return nil
	default:
		log.Printf("job %d changed: %v\n", id, result.Info)
		return nil
	}
}

func buildStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue status",
		Long:  "Display queue configuration and live job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}
	return cmd
}

func showStatus() error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("clusterqueue status")
	fmt.Println("--------------------")
	fmt.Printf("config file:   %s\n", configFile)
	fmt.Printf("queue root:    %s\n", cfg.Queue.Root)
	fmt.Printf("worker count:  %d\n", cfg.Worker.WorkerCount)
	fmt.Printf("cluster node:  %s\n", cfg.Cluster.NodeName)
	fmt.Printf("peers:         %v\n", cfg.Cluster.Peers)

	app, err := NewApp(cfg, nil)
	if err != nil {
		fmt.Printf("queue not reachable: %v\n", err)
		return nil
	}
	defer app.Queue.Close()

	jobs := app.Queue.QueryJobs(jobqueue.Filter{})
	counts := make(map[types.JobStatus]int)
	for _, j := range jobs {
		counts[j.Status()]++
	}
	fmt.Println("jobs by status:")
	for status, count := range counts {
		fmt.Printf("  %-10s %d\n", status, count)
	}

	if cfg.Metrics.Enabled {
		fmt.Printf("metrics:       enabled on :%d/metrics\n", cfg.Metrics.Port)
	} else {
		fmt.Println("metrics:       disabled")
	}

	return nil
}
