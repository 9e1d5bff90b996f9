package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/httpclient"
)

func newStreamCommand() *cobra.Command {
	var (
		kind       string
		bufferSize int
		maxEvents  int
	)

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream live mesh events",
		Long: `Stream live mesh events using Server-Sent Events.
Press Ctrl+C to stop streaming.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			streamClient, err := client.Stream(ctx, httpclient.StreamConfig{
				Kind:       kind,
				BufferSize: bufferSize,
			})
			if err != nil {
				return err
			}
			defer streamClient.Close()

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			what := kind
			if what == "" {
				what = "all"
			}
			fmt.Fprintf(errOut, "Streaming %s events from %s (Ctrl+C to stop)\n", what, serverURL)

			errs := streamClient.Errors()
			received := 0
			for {
				select {
				case event, ok := <-streamClient.Events():
					if !ok {
						return nil
					}
					line := fmt.Sprintf("%s %-10s %s", event.Timestamp.Local().Format("15:04:05"), event.Kind, event.Peer)
					if event.Payload != "" {
						line += ": " + event.Payload
					}
					fmt.Fprintln(out, line)

					received++
					if maxEvents > 0 && received >= maxEvents {
						return nil
					}

				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					fmt.Fprintf(errOut, "stream error: %v\n", err)

				case <-ctx.Done():
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only stream this kind: connect, message, disconnect, error")
	cmd.Flags().IntVar(&bufferSize, "buffer-size", 100, "Event buffer size")
	cmd.Flags().IntVar(&maxEvents, "max-events", 0, "Exit after this many events (0 = unlimited)")

	return cmd
}
