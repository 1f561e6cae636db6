package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll a swarm for new messages addressed to a public key",
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
		longPoll, _ := cmd.Flags().GetBool("long-poll")

		receiver := svc.receiver.WithLongPoll(longPoll)

		envelopes, err := receiver.GetMessages(context.Background(), pubKey)
		if err != nil {
			return fmt.Errorf("poll messages: %v", err)
		}

		fmt.Printf("%d new message(s)\n", len(envelopes))
		for _, e := range envelopes {
			fmt.Printf("  %s: %d bytes\n", e.Hash, len(e.Data))
		}
		return nil
	},
}

func init() {
	pollCmd.Flags().String("pubkey", "", "public key to poll")
	pollCmd.Flags().Bool("long-poll", false, "use the long-poll header and timeout")
	_ = pollCmd.MarkFlagRequired("pubkey")
}
