package main

import (
	"fmt"
	"regexp"

	"github.com/urfave/cli/v2"

	hunit "github.com/hunit-dev/hunit"
	"github.com/hunit-dev/hunit/flags"
	"github.com/hunit-dev/hunit/registry"
)

// ListCommand defines the "list" command printing registered tests without
// running them.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List registered tests without running them",
		Flags: []cli.Flag{
			flags.Pattern,
		},
		Action: listAction,
	}
}

func listAction(ctx *cli.Context) error {
	ids := registry.Global().SortedIdentifiers()

	if pattern := ctx.String(flags.Pattern.Name); pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return hunit.NewRuntimeError(fmt.Errorf("invalid test pattern %q: %w", pattern, err))
		}
		filtered := ids[:0]
		for _, id := range ids {
			if re.MatchString(id) {
				filtered = append(filtered, id)
			}
		}
		ids = filtered
	}

	for _, id := range ids {
		fmt.Fprintln(ctx.App.Writer, id)
	}
	return nil
}
