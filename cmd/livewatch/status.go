package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/onnwee/livewatch/api"
	"github.com/onnwee/livewatch/session"
)

func createStatusCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the stream's current status",
		Long:  "Fetch the instance config and stream status once and print them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(serverURL)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			client := api.New(cfg.ServerURL)
			inst, err := client.GetConfig(ctx)
			if err != nil {
				return fmt.Errorf("fetch config: %w", err)
			}
			st, err := client.GetStatus(ctx)
			if err != nil {
				color.Red("❌ %s: status unavailable (%v)", inst.Name, err)
				return nil
			}
			printStatus(inst, st, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVarP(&serverURL, "server", "s", "", "Streaming server base URL (overrides STREAM_SERVER_URL)")
	return cmd
}

func printStatus(inst api.Config, st api.Status, now time.Time) {
	s := session.NewState(session.DefaultOptions())
	s.Config = inst
	s.Online = st.Online
	s.ViewerCount = st.ViewerCount
	s.StreamTitle = st.StreamTitle
	s.LastConnectTime = st.LastConnectTime
	s.LastDisconnectTime = st.LastDisconnectTime
	v := session.Derive(s, now)

	if st.Online {
		color.Green("🟢 %s is live", v.Title)
		if st.LastConnectTime != nil {
			fmt.Printf("   live for %s\n", session.FormatDuration(now.Sub(*st.LastConnectTime)))
		}
	} else {
		color.Red("🔴 %s is offline", v.Title)
	}
	if v.ViewerCountMessage != "" {
		fmt.Printf("   %s\n", v.ViewerCountMessage)
	}
	if v.Tags != "" {
		color.Cyan("   %s", v.Tags)
	}
}
