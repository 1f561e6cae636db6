package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var swarmCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Inspect swarm discovery state",
}

var swarmShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the swarm currently cached for a public key, refreshing it if stale",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		startMetricsServer(cfg.MetricsAddr)

		svc, err := buildServices(cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		pubKey, _ := cmd.Flags().GetString("pubkey")

		nodes, err := svc.discovery.GetSwarm(context.Background(), pubKey)
		if err != nil {
			return fmt.Errorf("get swarm: %v", err)
		}

		fmt.Printf("swarm for %s (%d node(s)):\n", pubKey, len(nodes))
		for _, n := range nodes {
			fmt.Printf("  %s\n", n)
		}
		return nil
	},
}

func init() {
	swarmShowCmd.Flags().String("pubkey", "", "public key to look up")
	_ = swarmShowCmd.MarkFlagRequired("pubkey")
	swarmCmd.AddCommand(swarmShowCmd)
}
