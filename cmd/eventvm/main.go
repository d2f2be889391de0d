package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"eventvm/internal/engine"
	"eventvm/internal/hostkit"
	"eventvm/internal/interp"
	"eventvm/internal/lang"
	"eventvm/internal/snapshot"
	"eventvm/internal/snapshotstore"
	"eventvm/internal/step"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error
	switch cmd {
	case "run":
		err = cmdRun(os.Args[2:])
	case "step":
		err = cmdStep(os.Args[2:])
	case "snapshot":
		err = cmdSnapshot(os.Args[2:])
	case "resume":
		err = cmdResume(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	case "version", "-v", "--version":
		fmt.Println("eventvm", version)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`eventvm CLI

Usage:
  eventvm run [-args=file] [-env=file] [-stats] <program.json>
  eventvm step [-args=file] [-env=file] [-steps=N] <program.json>
  eventvm snapshot [-args=file] [-env=file] [-steps=N] -out=file|-store=driver:dsn <program.json>
  eventvm resume -state=file|-state=id -store=driver:dsn [-env=file] [-steps=N] <program.json>
  eventvm version

Flags go before the program file; anything after it is not parsed.

Commands:
  run       Run a program to completion
  step      Dispatch a fixed number of opcodes and report the ending state
  snapshot  Step a fresh invocation, then persist its suspended frame
  resume    Continue a persisted frame against a freshly supplied env
  version   eventvm version

-store takes "sqlite:path.db" or "postgres:<dsn>"; when set, -out/-state
name a snapshot ID in that store instead of a local file.`)
}

func newInterpreter() *interp.Interpreter {
	in := interp.New()
	hostkit.WireInto(in)
	return in
}

func loadProgram(path string) (*interp.Executable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading program: %w", err)
	}
	body, err := hostkit.LoadProgram(data)
	if err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}
	exe, err := newInterpreter().Compile(body)
	if err != nil {
		return nil, fmt.Errorf("compiling program: %w", err)
	}
	return exe, nil
}

func loadMapFile(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return m, nil
}

// splitStore parses a "driver:dsn" spec into its two halves.
func splitStore(spec string) (driver, dsn string, err error) {
	i := strings.IndexByte(spec, ':')
	if i < 0 {
		return "", "", fmt.Errorf("-store must be \"driver:dsn\", got %q", spec)
	}
	return spec[:i], spec[i+1:], nil
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	argsFile := fs.String("args", "", "JSON file of invocation arguments")
	envFile := fs.String("env", "", "JSON file of the shared environment")
	stats := fs.Bool("stats", false, "print opcode dispatch count and elapsed time")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("run: missing program file")
	}

	exe, err := loadProgram(fs.Arg(0))
	if err != nil {
		return err
	}
	params, err := loadMapFile(*argsFile)
	if err != nil {
		return err
	}
	env, err := loadMapFile(*envFile)
	if err != nil {
		return err
	}

	scope := lang.NewScope(params, env)
	start := time.Now()
	result, dispatches, err := runToCompletion(exe, scope)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	printResult(result)
	if *stats {
		fmt.Printf("stats: %s opcode dispatches in %s\n", humanize.Comma(int64(dispatches)), elapsed.Round(time.Microsecond))
	}
	return nil
}

// runToCompletion is engine.Run with a dispatch counter threaded
// through, for -stats reporting.
func runToCompletion(exe *interp.Executable, scope *step.Scope) (engine.Result, int, error) {
	pc, count := 0, 0
	for {
		next, result, done, err := engine.Step(exe.Program(), pc, scope, exe.Caller())
		if err != nil {
			return engine.Result{}, count, err
		}
		count++
		if done {
			return result, count, nil
		}
		pc = next
	}
}

func cmdStep(args []string) error {
	fs := flag.NewFlagSet("step", flag.ContinueOnError)
	argsFile := fs.String("args", "", "JSON file of invocation arguments")
	envFile := fs.String("env", "", "JSON file of the shared environment")
	n := fs.Int("steps", 1, "number of opcode dispatches to perform")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("step: missing program file")
	}

	exe, err := loadProgram(fs.Arg(0))
	if err != nil {
		return err
	}
	params, err := loadMapFile(*argsFile)
	if err != nil {
		return err
	}
	env, err := loadMapFile(*envFile)
	if err != nil {
		return err
	}

	scope := step.Scope{Args: params, Local: map[string]any{}, Env: env}
	pc, done, err := runSteps(exe, &scope, 0, *n)
	if err != nil {
		return err
	}
	reportSuspension(pc, done)
	return nil
}

func cmdSnapshot(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	argsFile := fs.String("args", "", "JSON file of invocation arguments")
	envFile := fs.String("env", "", "JSON file of the shared environment")
	n := fs.Int("steps", 1, "number of opcode dispatches before capturing")
	out := fs.String("out", "", "local file to write the snapshot to")
	store := fs.String("store", "", "driver:dsn to save the snapshot into instead of a file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("snapshot: missing program file")
	}
	if *out == "" && *store == "" {
		return fmt.Errorf("snapshot: one of -out or -store is required")
	}

	exe, err := loadProgram(fs.Arg(0))
	if err != nil {
		return err
	}
	params, err := loadMapFile(*argsFile)
	if err != nil {
		return err
	}
	env, err := loadMapFile(*envFile)
	if err != nil {
		return err
	}

	scope := step.Scope{Args: params, Local: map[string]any{}, Env: env}
	pc, done, err := runSteps(exe, &scope, 0, *n)
	if err != nil {
		return err
	}
	if done {
		return fmt.Errorf("snapshot: the invocation already completed, nothing to suspend")
	}

	snap, err := snapshot.Capture(uuid.New(), exe.Program(), pc, &scope)
	if err != nil {
		return err
	}
	if err := persistSnapshot(snap, *out, *store); err != nil {
		return err
	}
	fmt.Printf("snapshot %s suspended at pc %d\n", snap.ID, pc)
	return nil
}

func cmdResume(args []string) error {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	state := fs.String("state", "", "local snapshot file, or an ID when -store is set")
	store := fs.String("store", "", "driver:dsn to load the snapshot from instead of a file")
	envFile := fs.String("env", "", "JSON file of the shared environment")
	n := fs.Int("steps", 0, "opcode dispatches to perform; 0 runs to completion")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("resume: missing program file")
	}
	if *state == "" {
		return fmt.Errorf("resume: -state is required")
	}

	exe, err := loadProgram(fs.Arg(0))
	if err != nil {
		return err
	}
	snap, err := loadSnapshot(*state, *store)
	if err != nil {
		return err
	}

	env, err := loadMapFile(*envFile)
	if err != nil {
		return err
	}
	scope := snap.Restore(env)

	if *n == 0 {
		result, err := exe.Resume(snap.PC, scope)
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	}

	pc, done, err := runSteps(exe, scope, snap.PC, *n)
	if err != nil {
		return err
	}
	reportSuspension(pc, done)
	return nil
}

func persistSnapshot(snap *snapshot.Snapshot, out, storeSpec string) error {
	if storeSpec != "" {
		driver, dsn, err := splitStore(storeSpec)
		if err != nil {
			return err
		}
		ctx := context.Background()
		st, err := snapshotstore.Open(ctx, driver, dsn)
		if err != nil {
			return err
		}
		defer st.Close()
		return st.Save(ctx, snap)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("snapshot: creating %s: %w", out, err)
	}
	defer f.Close()
	return snapshot.Encode(f, snap)
}

func loadSnapshot(state, storeSpec string) (*snapshot.Snapshot, error) {
	if storeSpec != "" {
		driver, dsn, err := splitStore(storeSpec)
		if err != nil {
			return nil, err
		}
		ctx := context.Background()
		st, err := snapshotstore.Open(ctx, driver, dsn)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		return st.Load(ctx, state)
	}
	f, err := os.Open(state)
	if err != nil {
		return nil, fmt.Errorf("resume: opening %s: %w", state, err)
	}
	defer f.Close()
	return snapshot.Decode(f)
}

// runSteps dispatches at most n opcodes starting at pc, stopping early
// if the invocation finishes first.
func runSteps(exe *interp.Executable, scope *step.Scope, pc, n int) (int, bool, error) {
	for i := 0; i < n; i++ {
		next, _, done, err := engine.Step(exe.Program(), pc, scope, exe.Caller())
		if err != nil {
			return pc, false, err
		}
		if done {
			return pc, true, nil
		}
		pc = next
	}
	return pc, false, nil
}

func printResult(result engine.Result) {
	if result.Exited {
		fmt.Println("exited")
		return
	}
	fmt.Printf("returned: %v\n", result.Value)
}

func reportSuspension(pc int, done bool) {
	colorized := isatty.IsTerminal(os.Stdout.Fd())
	if done {
		if colorized {
			fmt.Println("\033[32mcompleted\033[0m")
		} else {
			fmt.Println("completed")
		}
		return
	}
	if colorized {
		fmt.Printf("\033[33msuspended at pc %d\033[0m\n", pc)
	} else {
		fmt.Printf("suspended at pc %d\n", pc)
	}
}
