package maincmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mna/mainer"

	"github.com/emberlang/ember/internal/builder"
	"github.com/emberlang/ember/lang/module"
)

// Build resolves the named module's dependency closure and compiles or
// loads every module in it, synchronously.
func (c *Cmd) Build(ctx context.Context, stdio mainer.Stdio, args []string) error {
	start := time.Now()

	target, err := module.ParseName(args[0])
	if err != nil {
		return printError(stdio, usageErr("%s", err))
	}

	env, err := openBuildEnv()
	if err != nil {
		return printError(stdio, err)
	}
	defer env.close()

	result := buildModules(ctx, stdio, env, []module.Name{target})
	return finishBuild(stdio, env, result, start)
}

// buildModules runs one builder over the given targets, sharing the
// environment's repositories and compiler across all of them.
func buildModules(ctx context.Context, stdio mainer.Stdio, env *buildEnv, targets []module.Name) builder.Result {
	comp := newAsmCompiler()
	log := slog.New(slog.NewTextHandler(stdio.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	b := builder.New(env.roots, sourceLoader{roots: env.roots}, env.stores, comp, comp, env.cfg.BuildParallelism, log)

	interrupt := new(builder.InterruptFlag)
	stop := context.AfterFunc(ctx, interrupt.Set)
	defer stop()

	opts := builder.Options{
		Interrupt: interrupt,
		ErrorSink: builder.WriterErrorSink{W: stdio.Stderr},
		Global: func(name string, pos, total uint64) {
			fmt.Fprintf(stdio.Stdout, "%s: %d/%d bytes\n", name, pos, total)
		},
	}

	for _, target := range targets {
		if result := b.Build(ctx, target, opts); result.Status != builder.StatusDone {
			return result
		}
	}
	return builder.Result{Status: builder.StatusDone}
}

// finishBuild closes the environment's repositories and prints the terminal
// status line with the elapsed time, mapping the builder status to the
// command's exit code.
func finishBuild(stdio mainer.Stdio, env *buildEnv, result builder.Result, start time.Time) error {
	closeErr := env.close()

	switch result.Status {
	case builder.StatusCancelled:
		fmt.Fprintf(stdio.Stdout, "Cancelled (%s)\n", elapsed(start))
		return cmdError{code: exitCancelled, err: errors.New("cancelled")}
	case builder.StatusAborted:
		fmt.Fprintf(stdio.Stdout, "Aborted (%s)\n", elapsed(start))
		var cerr *builder.CompilerError
		if errors.As(result.Err, &cerr) {
			return cmdError{code: exitCompile, err: result.Err}
		}
		return printError(stdio, ioErr(result.Err))
	default:
		if closeErr != nil {
			fmt.Fprintf(stdio.Stdout, "Aborted (%s)\n", elapsed(start))
			return printError(stdio, closeErr)
		}
		fmt.Fprintf(stdio.Stdout, "Done (%s)\n", elapsed(start))
		return nil
	}
}
