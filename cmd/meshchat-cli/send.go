package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send <text>...",
		Short: "Broadcast a chat message",
		Long:  "Broadcast a chat message to every peer of the node. Arguments are joined with spaces.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSend,
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	resp, err := client.SendMessage(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Message sent to %d peers\n", resp.Recipients)
	return nil
}
