package maincmd

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/mna/mainer"

	"github.com/emberlang/ember/lang/module"
)

// Refresh recompiles every module that has a source file, across all
// configured roots, replacing whatever their repositories held.
func (c *Cmd) Refresh(ctx context.Context, stdio mainer.Stdio, args []string) error {
	start := time.Now()

	env, err := openBuildEnv()
	if err != nil {
		return printError(stdio, err)
	}
	defer env.close()

	var targets []module.Name
	for _, root := range env.roots.Roots() {
		if !root.HasSource() {
			continue
		}
		names, err := sourceModules(root)
		if err != nil {
			env.close()
			return printError(stdio, ioErr(err))
		}
		targets = append(targets, names...)
	}

	// a refresh recompiles: drop the stored entries so the builder cannot
	// satisfy a target from its repository
	for _, name := range targets {
		repo, err := env.stores.repoFor(name)
		if err != nil {
			env.close()
			return printError(stdio, ioErr(err))
		}
		repo.Remove(name)
	}

	result := buildModules(ctx, stdio, env, targets)
	return finishBuild(stdio, env, result, start)
}

// sourceModules walks a root's source directory and derives the canonical
// module name of every source file in it.
func sourceModules(root module.Root) ([]module.Name, error) {
	var names []module.Name
	err := filepath.WalkDir(root.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, sourceExt) {
			return nil
		}
		rel, err := filepath.Rel(root.SourceDir, path)
		if err != nil {
			return err
		}
		canonical := "/" + root.Name + "/" + strings.TrimSuffix(filepath.ToSlash(rel), sourceExt)
		name, err := module.ParseName(canonical)
		if err != nil {
			return err
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}
