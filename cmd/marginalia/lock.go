package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/lease"
)

var (
	lockHolder string
	lockTTL    time.Duration
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect and manage document leases",
	Long: `A lease makes one session the editor of a document; other sessions are
view-only until it expires or is released.`,
}

var lockAcquireCmd = &cobra.Command{
	Use:   "acquire [id]",
	Short: "Acquire or renew the lease on a document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		defer ws.Close()

		store := leases(ws)
		l, err := store.Acquire(context.Background(), args[0], lockHolder, time.Now(), lockTTL)
		if errors.Is(err, core.ErrLocked) {
			current, _ := store.Lease(context.Background(), args[0])
			fatal("Document is locked", fmt.Errorf("%s holds it until %s", current.Holder, current.ExpiresAt.Local().Format(time.Kitchen)))
		}
		if err != nil {
			fatal("Failed to acquire lease", err)
		}
		printLease(l)
	},
}

var lockReleaseCmd = &cobra.Command{
	Use:   "release [id]",
	Short: "Release a lease held by --holder",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		defer ws.Close()

		if err := leases(ws).Release(context.Background(), args[0], lockHolder); err != nil {
			fatal("Failed to release lease", err)
		}
		fmt.Printf("Released '%s'.\n", args[0])
	},
}

var lockStatusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show who holds a document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		defer ws.Close()

		l, err := leases(ws).Lease(context.Background(), args[0])
		if errors.Is(err, core.ErrNotFound) || (err == nil && l.Expired(time.Now())) {
			fmt.Printf("'%s' is free.\n", args[0])
			return
		}
		if err != nil {
			fatal("Failed to read lease", err)
		}
		printLease(l)
	},
}

func leases(ws *workspace) core.LeaseStore {
	store, err := ws.svc.Leases()
	if err != nil {
		fatal("Leases unavailable", err)
	}
	return store
}

func printLease(l core.Lease) {
	fmt.Printf("%s held by %s until %s\n", l.DocumentID, l.Holder, l.ExpiresAt.Local().Format(time.RFC3339))
}

func defaultHolder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return fmt.Sprintf("%s@%s", os.Getenv("USER"), host)
}

func init() {
	rootCmd.AddCommand(lockCmd)
	lockCmd.AddCommand(lockAcquireCmd, lockReleaseCmd, lockStatusCmd)
	lockCmd.PersistentFlags().StringVar(&lockHolder, "holder", defaultHolder(), "Lease holder identity")
	lockAcquireCmd.Flags().DurationVar(&lockTTL, "ttl", lease.DefaultTTL, "Lease duration")
}
