package maincmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mna/mainer"

	"github.com/emberlang/ember/lang/module"
)

// Clean removes the named module root's compiled-module repository.
func (c *Cmd) Clean(ctx context.Context, stdio mainer.Stdio, args []string) error {
	start := time.Now()

	cfg, err := LoadRuntimeConfig()
	if err != nil {
		return printError(stdio, usageErr("%s", err))
	}
	roots, err := module.ParsePath(cfg.ModuleRoots)
	if err != nil {
		return printError(stdio, usageErr("%s", err))
	}
	root, ok := roots.Lookup(args[0])
	if !ok {
		return printError(stdio, usageErr("unknown module root %q", args[0]))
	}

	if err := os.Remove(root.Repo.Path()); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(stdio.Stdout, "Aborted (%s)\n", elapsed(start))
		return printError(stdio, ioErr(err))
	}
	fmt.Fprintf(stdio.Stdout, "Done (%s)\n", elapsed(start))
	return nil
}
