// Command node runs one failure-detector node actor: it registers with
// the Tracker, then answers Start/Stop/Shutdown and the gossip protocol
// over net/rpc until the process receives SIGINT or SIGTERM. A Shutdown
// from the Tracker stops the node actor but does not end the process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andr35/DS2-Project/internal/detect"
	"github.com/andr35/DS2-Project/internal/ids"
	"github.com/andr35/DS2-Project/internal/logging"
	"github.com/andr35/DS2-Project/internal/schedule"
	"github.com/andr35/DS2-Project/internal/transport"
)

var rootCmd = &cobra.Command{
	Use:   "node",
	Short: "run one gossip failure-detector node",
	Long: `node starts a failure-detector actor that registers itself with the
Tracker and then waits for StartExperiment/StopExperiment/Shutdown commands.

Configuration is read from the environment: HOST, PORT, ID (optional,
a stable opaque identifier is generated if unset) and TRACKER_ADDR.`,
	RunE: runNode,
}

// Execute runs the node command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	host := os.Getenv("HOST")
	if host == "" {
		host = "0.0.0.0"
	}
	port := os.Getenv("PORT")
	if port == "" {
		return fmt.Errorf("node: PORT is required")
	}
	trackerAddr := os.Getenv("TRACKER_ADDR")
	if trackerAddr == "" {
		return fmt.Errorf("node: TRACKER_ADDR is required")
	}

	debug := os.Getenv("DEBUG") != ""
	logger := logging.New(debug)
	defer logger.Sync()

	nodeID := detect.NodeID(os.Getenv("ID"))
	if nodeID == "" {
		nodeID = ids.New()
	}
	logger.Info("starting node", zap.String("id", string(nodeID)), zap.String("host", host), zap.String("port", port))

	sched := schedule.New()
	defer sched.Stop()

	registry := transport.NewDynamicRegistry()
	client := transport.NewNodeClient(nodeID, registry, trackerAddr, logger)

	engine := detect.NewEngine(nodeID, logger, sched, client)

	receiver := transport.NewNodeReceiver(engine, registry)
	server, err := transport.NewServer(fmt.Sprintf("%s:%s", host, port), transport.NodeServiceName, logger, receiver)
	if err != nil {
		return fmt.Errorf("node: create server: %w", err)
	}
	if err := server.Serve(); err != nil {
		return fmt.Errorf("node: serve: %w", err)
	}
	defer server.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go engine.Run(ctx)

	advertiseHost := host
	if advertiseHost == "0.0.0.0" {
		advertiseHost = "127.0.0.1"
	}
	selfAddr := fmt.Sprintf("%s:%d", advertiseHost, server.Port())
	if err := client.Register(selfAddr); err != nil {
		return fmt.Errorf("node: register with tracker: %w", err)
	}
	logger.Info("registered with tracker", zap.String("addr", selfAddr))

	<-ctx.Done()
	logger.Info("node shutting down")
	return nil
}

func main() {
	Execute()
}
