package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check node health",
		RunE:  runHealth,
	}
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	health, err := client.GetHealth(ctx)
	if health == nil {
		return err
	}

	out := cmd.OutOrStdout()
	if health.Healthy {
		fmt.Fprintf(out, "Node is healthy\n")
	} else {
		fmt.Fprintf(out, "Node is NOT healthy\n")
	}
	fmt.Fprintf(out, "Endpoint: %s\n", health.LocalEndpoint)
	fmt.Fprintf(out, "State: %s\n", health.State)
	fmt.Fprintf(out, "Connected Peers: %d\n", health.ConnectedPeers)
	fmt.Fprintf(out, "Stream Subscribers: %d\n", health.StreamSubscribers)
	fmt.Fprintf(out, "History Retained: %d\n", health.HistoryRetained)
	if health.Message != "" {
		fmt.Fprintf(out, "Message: %s\n", health.Message)
	}

	// an unhealthy node still exits non-zero
	return err
}
