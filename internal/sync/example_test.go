package sync_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/bmad-tools/bmadnotion/internal/config"
	"github.com/bmad-tools/bmadnotion/internal/notion/notiontest"
	"github.com/bmad-tools/bmadnotion/internal/store"
	"github.com/bmad-tools/bmadnotion/internal/sync"
	"github.com/spf13/afero"
)

// This example syncs a small project twice against an in-memory workspace.
// The second run finds nothing to do.
func ExampleRun() {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/proj/_bmad-output/planning-artifacts/prd.md", []byte("# PRD"), 0644)
	_ = afero.WriteFile(fs, "/proj/_bmad-output/implementation-artifacts/sprint-status.yaml",
		[]byte("development_status:\n  epic-1: in-progress\n  1-1-setup: done\n"), 0644)

	cfg := config.DefaultConfig("demo")
	cfg.Root = "/proj"
	cfg.PageSync.ParentPageID = "root-page"
	cfg.DatabaseSync.Sprints.DatabaseID = "sprints"
	cfg.DatabaseSync.Tasks.DatabaseID = "tasks"

	dir, err := os.MkdirTemp("", "bmadnotion-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, store.FileName))
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	req := sync.Request{
		Config:   cfg,
		Store:    st,
		Remote:   notiontest.New(),
		FS:       fs,
		Pages:    true,
		Database: true,
		Options:  sync.Options{Logger: log.New(io.Discard, "", 0)},
	}

	for i := 1; i <= 2; i++ {
		report, err := sync.Run(context.Background(), req)
		if err != nil {
			log.Fatal(err)
		}
		for _, r := range report.Results() {
			fmt.Printf("run %d %s: created=%d updated=%d skipped=%d\n", i, r.Category, r.Created, r.Updated, r.Skipped)
		}
	}

	// Output:
	// run 1 document: created=1 updated=0 skipped=0
	// run 1 epic: created=1 updated=0 skipped=0
	// run 1 story: created=1 updated=0 skipped=0
	// run 2 document: created=0 updated=0 skipped=1
	// run 2 epic: created=0 updated=0 skipped=1
	// run 2 story: created=0 updated=0 skipped=1
}
