// Package main provides the entry point for catpanel-cli.
//
// catpanel-cli inspects the remote module cache, resolves and loads
// modules the way the server does, and manages a running server over its
// admin API.
//
// Usage:
//
//	catpanel-cli cache ls
//	catpanel-cli --backend sqlite cache stat
//	catpanel-cli module load https://deno.land/std/path/mod.ts
//	catpanel-cli server config set log.level=debug --persist
package main

import (
	"fmt"
	"os"

	"github.com/BoxCatTeam/CatPanelBackend/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
