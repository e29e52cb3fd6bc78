package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Probe connectivity and sign in to the portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.portalClient(cmd.Context()); err != nil {
				return err
			}
			sess, _, _ := app.buildSession()
			path := "direct"
			if sess.Client().ProxyFirst() {
				path = "proxied"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (preferred path: %s)\n",
				sess.Username(), path)
			return nil
		},
	}
}
