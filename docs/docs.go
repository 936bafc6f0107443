//go:build docs

// Command docs regenerates the CLI reference under docs/ from the live
// command tree.
package main

import (
	"fmt"
	"os"
	"path"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra/doc"

	"github.com/maxgio92/pyflame/internal/settings"
	"github.com/maxgio92/pyflame/pkg/cmd"
)

const docsDir = "docs"

func main() {
	root := cmd.NewCommand(cmd.NewOptions(
		cmd.WithLogger(log.New(os.Stderr).Level(log.InfoLevel)),
	))

	prepender := func(_ string) string {
		return fmt.Sprintf("<!-- %s CLI reference. Generated, do not edit. -->\n\n", settings.CmdName)
	}
	// pyflame is a single root command, so every link stays inside
	// docs/.
	linkHandler := func(filename string) string {
		return path.Join(docsDir, filename)
	}

	if err := doc.GenMarkdownTreeCustom(root, docsDir, prepender, linkHandler); err != nil {
		fmt.Fprintln(os.Stderr, "failed to generate the CLI reference:", err)
		os.Exit(1)
	}

	fmt.Println("CLI reference written to", path.Join(docsDir, settings.CmdName+".md"))
}
