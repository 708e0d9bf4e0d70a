package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/marginalia"
	"github.com/aretw0/marginalia/pkg/assist"
	"github.com/aretw0/marginalia/pkg/readability"
)

var (
	suggestAt     int
	suggestDryRun bool
	suggestTrack  bool
	notesAction   string
	notesFile     string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [id]",
	Short: "Ask for a rewrite that fixes a readability issue",
	Long: `Pick the readability issue covering --at, a rune offset into the output of
'analyze', or the first issue when --at is omitted, and ask the generation
backend to rewrite it. Snapshots are taken before and after the edit.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		ws := mustWorkspace()
		defer ws.Close()
		ctx := context.Background()

		s := ws.editable(ctx, id, generator(ws))
		if suggestTrack {
			s.SetTrackChanges(true)
		}
		s.SetReadability(true)

		var (
			target readability.Decoration
			found  bool
		)
		for _, d := range s.Decorations().Items {
			if suggestAt < 0 || (d.From <= suggestAt && suggestAt < d.To) {
				target, found = d, true
				break
			}
		}
		if !found {
			_ = s.Close(ctx)
			fmt.Println("No issues found.")
			return
		}
		fmt.Printf("%s\n", target.Issue)

		p, err := s.Suggest(ctx, target)
		if err != nil {
			_ = s.Close(ctx)
			fatal("Failed to suggest a fix", err)
		}
		fmt.Printf("- %s\n+ %s\n", p.Original, p.Text)
		if p.Failed || suggestDryRun {
			_ = s.Close(ctx)
			return
		}
		applied, err := s.ApplyProposal(ctx, p, string(target.Kind))
		if err != nil {
			_ = s.Close(ctx)
			fatal("Failed to apply fix", err)
		}
		if !applied {
			_ = s.Close(ctx)
			fatal("Fix discarded", fmt.Errorf("the document changed while generating"))
		}
		closeSession(ctx, s, marginalia.FormatChangeReason(marginalia.CommitTypeDocs, id, "fix "+string(target.Kind), ""))
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat [id] [message]",
	Short: "Ask a question about a draft",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		defer ws.Close()
		ctx := context.Background()

		s, err := ws.session(ctx, args[0], generator(ws))
		if err != nil {
			fatal("Failed to open document", err)
		}
		defer s.Close(ctx)

		c, err := s.Chat(ctx, nil, args[1])
		if err != nil {
			fatal("Chat failed", err)
		}
		fmt.Println(c.Text)
	},
}

var notesCmd = &cobra.Command{
	Use:   "notes [id]",
	Short: "Turn scratchpad notes into an outline or a draft",
	Long: `Read notes from --file, or from stdin when --file is "-", and run a notes
action with the document as context: notes-outline, notes-draft, or
notes-reconcile to compare the notes with the draft.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		action, err := assist.ParseAction(notesAction)
		if err != nil {
			fatal("Invalid action", err)
		}
		var data []byte
		if notesFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(notesFile)
		}
		if err != nil {
			fatal("Failed to read notes", err)
		}

		ws := mustWorkspace()
		defer ws.Close()
		ctx := context.Background()

		s, err := ws.session(ctx, args[0], generator(ws))
		if err != nil {
			fatal("Failed to open document", err)
		}
		defer s.Close(ctx)

		c, err := s.FromNotes(ctx, action, strings.TrimSpace(string(data)))
		if err != nil {
			fatal("Notes action failed", err)
		}
		fmt.Println(c.Text)
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd, chatCmd, notesCmd)
	suggestCmd.Flags().IntVar(&suggestAt, "at", -1, "Rune offset inside the issue to fix")
	suggestCmd.Flags().BoolVar(&suggestDryRun, "dry-run", false, "Print the suggestion without applying it")
	suggestCmd.Flags().BoolVar(&suggestTrack, "track", false, "Record the fix as tracked changes")
	notesCmd.Flags().StringVarP(&notesAction, "action", "a", assist.ActionNotesOutline.String(), "notes-outline, notes-draft or notes-reconcile")
	notesCmd.Flags().StringVar(&notesFile, "file", "-", "Notes file, - for stdin")
}
