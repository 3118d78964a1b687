package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"chatwidget/internal/domain"
)

func newUploadCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload [file]",
		Short: "Upload a PDF and index it for document mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			services, err := root.build()
			if err != nil {
				return err
			}
			defer services.Close()

			index, err := services.Controller.Documents().Upload(cmd.Context(), domain.DocumentFile{
				Name: filepath.Base(path),
				Data: data,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s as %q\n", filepath.Base(path), index)
			return nil
		},
	}
}
