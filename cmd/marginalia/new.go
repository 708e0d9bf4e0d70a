package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aretw0/marginalia"
	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/doc"
)

var newTitle string

var newCmd = &cobra.Command{
	Use:   "new [id]",
	Short: "Create a document",
	Long:  `Create a document starting with a title heading. The ID defaults to a random UUID.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := uuid.NewString()
		if len(args) == 1 {
			id = args[0]
		}
		title := strings.TrimSpace(newTitle)
		if title == "" {
			title = "Untitled"
		}

		ws := mustWorkspace()
		defer ws.Close()
		ctx := context.Background()

		if _, err := ws.svc.GetDocument(ctx, id); err == nil {
			fatal("Failed to create document", fmt.Errorf("%s already exists", id))
		} else if !errors.Is(err, core.ErrNotFound) {
			fatal("Failed to check document", err)
		}

		d, err := doc.FromMarkdown("# " + title + "\n")
		if err != nil {
			fatal("Invalid title", err)
		}
		tree, err := d.MarshalJSON()
		if err != nil {
			fatal("Failed to encode document", err)
		}

		reason := marginalia.FormatChangeReason(marginalia.CommitTypeDocs, id, "create "+title, "")
		err = ws.svc.SaveDocument(core.WithChangeReason(ctx, reason), core.Document{
			ID:       id,
			Title:    d.Title(),
			Tree:     tree,
			Markdown: d.Markdown(),
		})
		if err != nil {
			fatal("Failed to save document", err)
		}
		fmt.Println(id)
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringVarP(&newTitle, "title", "t", "", "Title of the document")
}
