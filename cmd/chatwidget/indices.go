package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndicesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "indices",
		Short: "List the indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := root.build()
			if err != nil {
				return err
			}
			defer services.Close()

			names, err := services.Controller.Documents().ListIndices(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No documents indexed yet.")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}
