package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chatwidget/internal/domain"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var document string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("question is empty")
			}

			services, err := root.build()
			if err != nil {
				return err
			}
			defer services.Close()

			ctx := cmd.Context()
			controller := services.Controller
			if document != "" {
				docs := controller.Documents()
				if _, err := docs.ListIndices(ctx); err != nil {
					return err
				}
				if err := docs.SetActiveIndex(document); err != nil {
					return fmt.Errorf("%w: %s", err, document)
				}
				if err := docs.SetDocumentModeEnabled(true); err != nil {
					return err
				}
			}

			if err := controller.Send(ctx, question); err != nil {
				return err
			}
			return printAnswer(cmd, controller.Snapshot())
		},
	}
	cmd.Flags().StringVarP(&document, "document", "d", "", "answer from this indexed document")
	return cmd
}

func printAnswer(cmd *cobra.Command, snapshot domain.Snapshot) error {
	out := cmd.OutOrStdout()
	if len(snapshot.Transcript) == 0 {
		return fmt.Errorf("no answer received")
	}
	answer := snapshot.Transcript[len(snapshot.Transcript)-1]
	fmt.Fprintln(out, answer.Text)

	if snapshot.PromptsVisible && len(snapshot.ExamplePrompts) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Suggestions:")
		for _, prompt := range snapshot.ExamplePrompts {
			fmt.Fprintf(out, "  - %s\n", prompt)
		}
	}
	return nil
}
