package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/oxen-io/session-network-core/pkg/types"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a message, preferring a known peer over a swarm broadcast",
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

		to, _ := cmd.Flags().GetString("to")
		bodyHex, _ := cmd.Flags().GetString("body-hex")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		ping, _ := cmd.Flags().GetBool("ping")

		body, err := hex.DecodeString(bodyHex)
		if err != nil {
			return fmt.Errorf("decode body-hex: %w", err)
		}

		msg := types.Message{
			Destination: to,
			Body:        body,
			TTL:         ttl,
			Timestamp:   time.Now(),
			Ping:        ping,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		result, err := svc.sender.Send(ctx, msg, nil)
		if err != nil {
			return fmt.Errorf("send message: %v", err)
		}

		fmt.Printf("delivered via %s path\n", result.Path)
		for _, target := range result.Targets {
			status := "ok"
			if target.Err != nil {
				status = target.Err.Error()
			}
			fmt.Printf("  %s: %s\n", target.Target, status)
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().String("to", "", "recipient public key, hex-encoded")
	sendCmd.Flags().String("body-hex", "", "hex-encoded ciphertext body")
	sendCmd.Flags().Duration("ttl", 24*time.Hour, "message time-to-live")
	sendCmd.Flags().Bool("ping", false, "prefer the direct peer-to-peer path even if the peer isn't known online")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("body-hex")
}
