package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/marginalia"
	"github.com/aretw0/marginalia/pkg/session"
)

var trackIndex int

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Resolve tracked changes",
}

var trackAcceptCmd = &cobra.Command{
	Use:   "accept [id]",
	Short: "Accept all tracked changes, or one with --index",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resolve(args[0], true)
	},
}

var trackRejectCmd = &cobra.Command{
	Use:   "reject [id]",
	Short: "Reject all tracked changes, or one with --index",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resolve(args[0], false)
	},
}

func resolve(id string, accept bool) {
	ws := mustWorkspace()
	defer ws.Close()
	ctx := context.Background()

	s := ws.editable(ctx, id)
	verb := "reject"
	if accept {
		verb = "accept"
	}

	var (
		changed bool
		err     error
	)
	if trackIndex >= 0 {
		changed, err = resolveOne(s, trackIndex, accept)
	} else if accept {
		changed, err = s.AcceptAll()
	} else {
		changed, err = s.RejectAll()
	}
	if err != nil {
		_ = s.Close(ctx)
		fatal(fmt.Sprintf("Failed to %s changes", verb), err)
	}
	if !changed {
		_ = s.Close(ctx)
		fmt.Println("No tracked changes.")
		return
	}

	reason := marginalia.FormatChangeReason(marginalia.CommitTypeDocs, id, verb+" tracked changes", "")
	closeSession(ctx, s, reason)
	fmt.Printf("Changes %sed in '%s'.\n", verb, id)
}

func resolveOne(s *session.Session, i int, accept bool) (bool, error) {
	changes := s.Changes()
	if i >= len(changes) {
		return false, fmt.Errorf("no change at index %d (%d pending)", i, len(changes))
	}
	if accept {
		return s.Accept(changes[i])
	}
	return s.Reject(changes[i])
}

func init() {
	rootCmd.AddCommand(trackCmd)
	trackCmd.AddCommand(trackAcceptCmd, trackRejectCmd)
	trackCmd.PersistentFlags().IntVarP(&trackIndex, "index", "i", -1, "Index of a single change, as listed by 'changes'")
}
