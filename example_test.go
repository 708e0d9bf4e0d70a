package marginalia_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/marginalia"
	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/session"
)

// Example_basic stores a markdown document and reads it back.
func Example_basic() {
	tmpDir, err := os.MkdirTemp("", "marginalia-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	svc, err := marginalia.New(tmpDir,
		marginalia.WithAutoInit(true),
		marginalia.WithVersioning(false),
		marginalia.WithForceTemp(false),
		marginalia.WithDevSafety(false),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()

	ctx := context.Background()
	err = svc.SaveDocument(ctx, core.Document{ID: "hello", Title: "Hello", Markdown: "# Hello\n\nFirst draft.\n"})
	if err != nil {
		log.Fatal(err)
	}

	d, err := svc.GetDocument(ctx, "hello")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(d.ID)
	// Output:
	// hello
}

// ExampleOpen edits a document through a session.
func ExampleOpen() {
	tmpDir, err := os.MkdirTemp("", "marginalia-session-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	svc, err := marginalia.New(tmpDir,
		marginalia.WithAutoInit(true),
		marginalia.WithVersioning(false),
		marginalia.WithDevSafety(false),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()

	ctx := context.Background()
	s, err := marginalia.Open(ctx, svc, "essay",
		session.WithCreate(),
		session.WithAutosaveDelay(-1),
		session.WithAutoSnapshots(-1),
	)
	if err != nil {
		log.Fatal(err)
	}

	if err := s.Save(ctx); err != nil {
		log.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		log.Fatal(err)
	}

	fmt.Println(s.DocumentID())
	// Output:
	// essay
}
