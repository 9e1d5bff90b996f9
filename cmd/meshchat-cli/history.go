package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		offset  int64
		limit   int
		useCBOR bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Read the node's event history",
		Long: `Read recorded mesh events (connects, messages, disconnects, errors).
The history is in memory and bounded; old events are evicted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			read := client.History
			if useCBOR {
				read = client.HistoryCBOR
			}
			resp, err := read(ctx, offset, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			fmt.Fprintf(out, "Events %d..%d (%d shown)\n", resp.StartOffset, resp.EndOffset, resp.Count)
			for _, r := range resp.Records {
				line := fmt.Sprintf("[%d] %s %-10s %s", r.Offset, r.Timestamp.Format("15:04:05"), r.Kind, r.Peer)
				if r.Payload != "" {
					line += ": " + r.Payload
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&offset, "offset", -1, "First offset to read (default: oldest retained)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of events (default: server default)")
	cmd.Flags().BoolVar(&useCBOR, "cbor", false, "Fetch the history as CBOR")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw response as JSON")

	return cmd
}
