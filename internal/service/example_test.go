package service_test

import (
	"context"
	"fmt"
	"os"

	"github.com/jpl-au/wikid/internal/config"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
	"github.com/jpl-au/wikid/internal/wiki"
	"github.com/jpl-au/wikid/internal/workspace"
)

// tempWiki creates a wiki in a temporary workspace for examples.
func tempWiki() (service.Service, func()) {
	dir, err := os.MkdirTemp("", "wikid-example-*")
	if err != nil {
		panic(err)
	}
	ws, err := workspace.Init(false, false, dir)
	if err != nil {
		panic(err)
	}
	svc, err := wiki.Open(context.Background(), ws, &config.Config{}, nil)
	if err != nil {
		panic(err)
	}
	cleanup := func() {
		svc.Close()
		os.RemoveAll(dir)
	}
	return svc, cleanup
}

func Example_basicUsage() {
	svc, cleanup := tempWiki()
	defer cleanup()
	ctx := context.Background()

	p, err := svc.Save(ctx, "MainPage", "Hello, World!", service.SaveOptions{
		Author:     "alice",
		ChangeNote: "first page",
	})
	if err != nil {
		panic(err)
	}
	fmt.Println(p.Version)

	text, err := svc.Text(ctx, "MainPage", provider.Latest)
	if err != nil {
		panic(err)
	}
	fmt.Println(text)
	// Output:
	// 1
	// Hello, World!
}

func Example_exists() {
	svc, cleanup := tempWiki()
	defer cleanup()
	ctx := context.Background()

	exists, _ := svc.Exists(ctx, "Docs/New")
	fmt.Println("Before:", exists)

	_, _ = svc.Save(ctx, "Docs/New", "content", service.SaveOptions{Author: "alice"})

	exists, _ = svc.Exists(ctx, "Docs/New")
	fmt.Println("After:", exists)
	// Output:
	// Before: false
	// After: true
}

func Example_history() {
	svc, cleanup := tempWiki()
	defer cleanup()
	ctx := context.Background()

	_, _ = svc.Save(ctx, "Evolving", "Version 1", service.SaveOptions{Author: "alice", ChangeNote: "Initial"})
	_, _ = svc.Save(ctx, "Evolving", "Version 2", service.SaveOptions{Author: "bob", ChangeNote: "Update"})
	_, _ = svc.Save(ctx, "Evolving", "Version 3", service.SaveOptions{Author: "alice", ChangeNote: "Final"})

	// History is newest first.
	history, _ := svc.History(ctx, "Evolving")
	for _, p := range history {
		fmt.Printf("v%d by %s: %s\n", p.Version, p.Author, p.ChangeNote)
	}
	// Output:
	// v3 by alice: Final
	// v2 by bob: Update
	// v1 by alice: Initial
}

func Example_list() {
	svc, cleanup := tempWiki()
	defer cleanup()
	ctx := context.Background()

	_, _ = svc.Save(ctx, "Docs/B", "B", service.SaveOptions{Author: "alice"})
	_, _ = svc.Save(ctx, "Docs/A", "A", service.SaveOptions{Author: "alice"})
	_, _ = svc.Save(ctx, "Notes", "X", service.SaveOptions{Author: "alice"})

	pages, _ := svc.List(ctx, service.ListOptions{Prefix: "docs/"})
	for _, p := range pages {
		fmt.Println(p.Name)
	}
	// Output:
	// Docs/A
	// Docs/B
}

func Example_references() {
	svc, cleanup := tempWiki()
	defer cleanup()
	ctx := context.Background()

	_, _ = svc.Save(ctx, "Home", "See [Recipes] and [Garden].", service.SaveOptions{Author: "alice"})
	_, _ = svc.Save(ctx, "Recipes", "Soup.", service.SaveOptions{Author: "alice"})

	referrers, _ := svc.Referrers(ctx, "Recipes")
	fmt.Println("Referrers:", referrers)
	uncreated, _ := svc.Uncreated(ctx)
	fmt.Println("Uncreated:", uncreated)
	// Output:
	// Referrers: [Home]
	// Uncreated: [Garden]
}
