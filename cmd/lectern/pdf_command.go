package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lectern/internal/slidepdf"
)

func newPDFCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:         "pdf <image>...",
		Short:       "Assemble slide images into a PDF",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := slidepdf.Compose(args, outPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d pages)\n", outPath, len(args))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "slides.pdf", "Output PDF path")
	return cmd
}
