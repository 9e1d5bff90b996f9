package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newAdminCommand() *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands (requires an admin token)",
	}

	adminCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show node and history statistics",
		RunE:  runAdminStats,
	})
	adminCmd.AddCommand(&cobra.Command{
		Use:   "subscriptions",
		Short: "List live event stream subscriptions",
		RunE:  runAdminSubscriptions,
	})

	return adminCmd
}

func runAdminStats(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	stats, err := client.AdminGetStats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "State: %s\n", stats.State)
	fmt.Fprintf(out, "Connected Peers: %d\n", stats.ConnectedPeers)
	fmt.Fprintf(out, "History: %d total, %d retained, %d evicted (capacity %d)\n",
		stats.History.TotalEvents, stats.History.Retained, stats.History.Evicted, stats.History.Capacity)

	kinds := make([]string, 0, len(stats.History.KindCounts))
	for kind := range stats.History.KindCounts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(out, "  %-10s %d\n", kind, stats.History.KindCounts[kind])
	}
	return nil
}

func runAdminSubscriptions(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	resp, err := client.AdminListSubscriptions(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp.Count == 0 {
		fmt.Fprintln(out, "No active subscriptions")
		return nil
	}
	fmt.Fprintf(out, "Subscriptions (%d):\n", resp.Count)
	for _, sub := range resp.Subscriptions {
		fmt.Fprintf(out, "  %s (%s) %s\n", sub.SubscriberID, sub.Type, sub.Pattern)
	}
	return nil
}
