package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/bmad-tools/bmadnotion/internal/notion"
	"github.com/bmad-tools/bmadnotion/internal/store"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func version() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "bmadnotion %s (%s/%s)\n", version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(a.stdout, "  notion api %s\n", notion.APIVersion)
			fmt.Fprintf(a.stdout, "  state schema %s\n", store.SchemaVersion)
		},
	}
}
