package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/marginalia/pkg/snapshot"
)

var (
	snapshotLabel string
	snapshotJSON  bool
)

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Aliases: []string{"snap"},
	Short:   "Take, list, compare and restore snapshots",
}

var snapshotTakeCmd = &cobra.Command{
	Use:   "take [id]",
	Short: "Take a manual snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		defer ws.Close()
		ctx := context.Background()

		s, err := ws.session(ctx, args[0])
		if err != nil {
			fatal("Failed to open document", err)
		}
		defer s.Close(ctx)

		snap, taken, err := s.Snapshot(ctx, snapshotLabel)
		if err != nil {
			fatal("Failed to take snapshot", err)
		}
		if !taken {
			fmt.Println("Nothing to snapshot: the document is too short or unchanged.")
			return
		}
		fmt.Printf("%s  %s\n", snap.ID, snap.Label)
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list [id]",
	Short: "List the snapshots of a document, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		defer ws.Close()

		store, err := ws.svc.Snapshots()
		if err != nil {
			fatal("Snapshots unavailable", err)
		}
		snaps, err := store.Snapshots(context.Background(), args[0])
		if err != nil {
			fatal("Failed to list snapshots", err)
		}

		if snapshotJSON {
			for i := range snaps {
				snaps[i].Tree = nil
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(snaps); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}
		for _, snap := range snaps {
			fmt.Printf("%s  %s  %-10s %5d words  %s\n",
				snap.ID, snap.CreatedAt.Local().Format("2006-01-02 15:04"), snap.Trigger, snap.WordCount, snap.Label)
		}
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore [id] [snapshot]",
	Short: "Replace a document with a snapshot",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		defer ws.Close()
		ctx := context.Background()

		s := ws.editable(ctx, args[0])
		if err := s.Restore(ctx, args[1]); err != nil {
			_ = s.Close(ctx)
			fatal("Failed to restore snapshot", err)
		}
		if err := s.Close(ctx); err != nil {
			fatal("Failed to close session", err)
		}
		fmt.Printf("Restored '%s' from %s.\n", args[0], args[1])
	},
}

var snapshotDiffCmd = &cobra.Command{
	Use:   "diff [from] [to]",
	Short: "Compare two snapshots word by word",
	Long: `Compare two snapshots of the same document. Insertions print as {+text+}
and deletions as [-text-].`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		defer ws.Close()

		store, err := ws.svc.Snapshots()
		if err != nil {
			fatal("Snapshots unavailable", err)
		}
		parts, err := snapshot.New(store).Compare(context.Background(), args[0], args[1])
		if err != nil {
			fatal("Failed to compare snapshots", err)
		}
		if !snapshot.Changed(parts) {
			fmt.Println("No differences.")
			return
		}
		fmt.Println(wordDiff(parts))
	},
}

func wordDiff(parts []snapshot.Part) string {
	var sb strings.Builder
	for _, p := range parts {
		switch p.Op {
		case snapshot.OpInsert:
			sb.WriteString("{+" + p.Text + "+}")
		case snapshot.OpDelete:
			sb.WriteString("[-" + p.Text + "-]")
		default:
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotTakeCmd, snapshotListCmd, snapshotRestoreCmd, snapshotDiffCmd)
	snapshotTakeCmd.Flags().StringVarP(&snapshotLabel, "label", "l", "", "Label of the snapshot")
	snapshotListCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Output in JSON format")
}
