package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newPeersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "List the node's peers",
		RunE:  runPeers,
	}
}

func runPeers(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	resp, err := client.Peers(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Node: %s (%s)\n", resp.LocalEndpoint, resp.State)
	if len(resp.Peers) == 0 {
		fmt.Fprintln(out, "No peers")
		return nil
	}
	fmt.Fprintf(out, "Peers (%d):\n", len(resp.Peers))
	for _, peer := range resp.Peers {
		fmt.Fprintf(out, "  %s\n", peer)
	}
	return nil
}

func newConnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <addr:port>",
		Short: "Join the chat a member belongs to",
		Long: `Ask the node to join the chat that the given member belongs to.
The node connects to the member and to every peer the member announces.`,
		Args: cobra.ExactArgs(1),
		RunE: runConnect,
	}
}

func runConnect(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	resp, err := client.Connect(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Joined chat through %s, now connected to %d peers\n", resp.Target, len(resp.Peers))
	return nil
}
