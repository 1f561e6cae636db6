// Command sessionclient is a small Cobra CLI exercising the library end
// to end: sending a message, polling a swarm, inspecting swarm discovery
// state, and talking to an open-group server.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/oxen-io/session-network-core/pkg/config"
	"github.com/oxen-io/session-network-core/pkg/log"
	"github.com/oxen-io/session-network-core/pkg/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version is set via ldflags during build.
	Version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sessionclient",
	Short:   "Client-side networking core for a swarm-based messaging network",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")
	rootCmd.PersistentFlags().String("metrics-addr", "", "address to serve Prometheus metrics on")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(swarmCmd)
	rootCmd.AddCommand(openGroupCmd)
}

// loadConfig reads the config file named by --config, applies any
// persistent flags the caller set on top of it, and initializes the
// global logger from the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-json") {
		cfg.LogJSON, _ = cmd.Flags().GetBool("log-json")
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}

	log.Init(cfg.LogConfig())
	return cfg, nil
}

// startMetricsServer serves /metrics in the background and logs, rather
// than fails, if the listener can't be bound — metrics are diagnostic,
// not load-bearing for any subcommand's own work.
func startMetricsServer(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithComponent("metrics").Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
}
