package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/marginalia"
	"github.com/aretw0/marginalia/pkg/adapters/llm"
	"github.com/aretw0/marginalia/pkg/assist"
	"github.com/aretw0/marginalia/pkg/session"
	"github.com/aretw0/marginalia/pkg/transform"
)

var (
	rewriteAction string
	rewriteFrom   int
	rewriteTo     int
	rewriteDryRun bool
	rewriteTrack  bool
	adviseAction  string
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [id]",
	Short: "Rewrite part of a document with a generation backend",
	Long: `Rewrite the text between --from and --to, rune offsets into the output of
'show --format text'. Snapshots are taken before and after the edit.
Requires ANTHROPIC_API_KEY or OPENAI_API_KEY.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		action, err := assist.ParseAction(rewriteAction)
		if err != nil {
			fatal("Invalid action", err)
		}

		ws := mustWorkspace()
		defer ws.Close()
		ctx := context.Background()

		s := ws.editable(ctx, id, generator(ws))
		if rewriteTrack {
			s.SetTrackChanges(true)
		}

		from, to, ok := s.Doc().PlainText(true).Range(rewriteFrom, rewriteTo)
		if !ok {
			_ = s.Close(ctx)
			fatal("Invalid range", fmt.Errorf("[%d,%d) is outside the text", rewriteFrom, rewriteTo))
		}
		if _, err := s.Dispatch(s.Editor().Begin().SetSelection(transform.Span(from, to))); err != nil {
			_ = s.Close(ctx)
			fatal("Failed to select text", err)
		}

		p, err := s.Propose(ctx, action)
		if err != nil {
			_ = s.Close(ctx)
			fatal("Failed to propose rewrite", err)
		}
		fmt.Printf("- %s\n+ %s\n", p.Original, p.Text)
		if p.Failed || rewriteDryRun {
			_ = s.Close(ctx)
			return
		}

		applied, err := s.ApplyProposal(ctx, p, "")
		if err != nil {
			_ = s.Close(ctx)
			fatal("Failed to apply rewrite", err)
		}
		if !applied {
			_ = s.Close(ctx)
			fatal("Rewrite discarded", fmt.Errorf("the document changed while generating"))
		}
		closeSession(ctx, s, marginalia.FormatChangeReason(marginalia.CommitTypeDocs, id, "rewrite: "+action.String(), ""))
	},
}

var adviseCmd = &cobra.Command{
	Use:   "advise [id]",
	Short: "Ask for advice about a draft, or fact-check it",
	Long: `Ask a stuck-writer question (next, end, transition, angle, ...) about the
whole draft, request an analysis (summary, titles, outline, takeaways,
consistency, hooks, research-gaps, cleanup), read it as an audience
(audience-skeptic, audience-expert, audience-executive, ...), or pass
--action fact-check to review its claims.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		action, err := assist.ParseAction(adviseAction)
		if err != nil {
			fatal("Invalid action", err)
		}

		ws := mustWorkspace()
		defer ws.Close()
		ctx := context.Background()

		s, err := ws.session(ctx, args[0], generator(ws))
		if err != nil {
			fatal("Failed to open document", err)
		}
		defer s.Close(ctx)

		if action == assist.ActionFactCheck {
			fc, err := s.FactCheck(ctx)
			if err != nil {
				fatal("Fact-check failed", err)
			}
			if fc.Raw != "" {
				fmt.Println(fc.Raw)
				return
			}
			for _, f := range fc.Findings {
				fmt.Printf("[%s] %s\n  %s\n", f.Confidence, f.Claim, f.Issue)
			}
			return
		}

		c, err := s.Consult(ctx, action)
		if err != nil {
			fatal("Consultation failed", err)
		}
		fmt.Println(c.Text)
	},
}

// generator configures the text backend from the environment.
func generator(ws *workspace) session.Option {
	b, err := llm.FromEnv(slog.Default())
	if err != nil {
		fatal("No generation backend", err)
	}
	model := b.Model
	if ws.cfg.Models.Text != "" {
		model = ws.cfg.Models.Text
	}
	return session.WithGenerator(b.Text, model)
}

func init() {
	rootCmd.AddCommand(rewriteCmd, adviseCmd)
	rewriteCmd.Flags().StringVarP(&rewriteAction, "action", "a", assist.ActionCopyedit.String(), "Rewrite action (copyedit, clarity, shorten, formal, ...)")
	rewriteCmd.Flags().IntVar(&rewriteFrom, "from", 0, "Start rune offset")
	rewriteCmd.Flags().IntVar(&rewriteTo, "to", 0, "End rune offset")
	rewriteCmd.Flags().BoolVar(&rewriteDryRun, "dry-run", false, "Print the proposal without applying it")
	rewriteCmd.Flags().BoolVar(&rewriteTrack, "track", false, "Record the rewrite as tracked changes")
	_ = rewriteCmd.MarkFlagRequired("to")
	adviseCmd.Flags().StringVarP(&adviseAction, "action", "a", assist.ActionNext.String(), "Consultation action, or fact-check")
}
