package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var openGroupCmd = &cobra.Command{
	Use:   "opengroup",
	Short: "Interact with an open-group chat server",
}

var openGroupFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch new messages from an open-group channel",
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

		server, _ := cmd.Flags().GetString("server")
		channel, _ := cmd.Flags().GetInt64("channel")

		messages, err := svc.openGroup.FetchMessages(context.Background(), server, channel)
		if err != nil {
			return fmt.Errorf("fetch messages: %v", err)
		}

		for _, m := range messages {
			fmt.Printf("[%d] %s: %s\n", m.ServerID, m.Author, m.Text)
		}
		return nil
	},
}

var openGroupPostCmd = &cobra.Command{
	Use:   "post",
	Short: "Post a signed message to an open-group channel",
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

		server, _ := cmd.Flags().GetString("server")
		channel, _ := cmd.Flags().GetInt64("channel")
		text, _ := cmd.Flags().GetString("text")

		msg, err := svc.openGroup.PostMessage(context.Background(), server, channel, text)
		if err != nil {
			return fmt.Errorf("post message: %v", err)
		}

		fmt.Printf("posted message %d\n", msg.ServerID)
		return nil
	},
}

func init() {
	openGroupFetchCmd.Flags().String("server", "", "open-group server base URL")
	openGroupFetchCmd.Flags().Int64("channel", 1, "channel id")
	_ = openGroupFetchCmd.MarkFlagRequired("server")

	openGroupPostCmd.Flags().String("server", "", "open-group server base URL")
	openGroupPostCmd.Flags().Int64("channel", 1, "channel id")
	openGroupPostCmd.Flags().String("text", "", "message text")
	_ = openGroupPostCmd.MarkFlagRequired("server")
	_ = openGroupPostCmd.MarkFlagRequired("text")

	openGroupCmd.AddCommand(openGroupFetchCmd, openGroupPostCmd)
}
