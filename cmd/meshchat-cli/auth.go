package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newAuthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with the node",
		Long: `Authenticate with the node using your client ID.
This prints a JWT token that can be used for subsequent requests.`,
		RunE: runAuth,
	}
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Authenticating with %s as %s...\n", serverURL, clientID)

	if err := client.Authenticate(ctx); err != nil {
		return err
	}

	issued := client.GetToken()
	fmt.Fprintf(out, "Authentication successful\n")
	fmt.Fprintf(out, "Token: %s\n", issued)
	fmt.Fprintf(out, "\nSave it for later commands:\n")
	fmt.Fprintf(out, "  export %s=\"%s\"\n", tokenEnv, issued)
	fmt.Fprintf(out, "  meshchat-cli send \"hello\"\n")

	return nil
}
