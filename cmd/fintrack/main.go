package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

// app carries what every command needs.
type app struct {
	cfg    *config.Config
	store  *backend.BackendResult
	svc    *services.ReportService
	logger *log.Logger
	out    io.Writer
	errOut io.Writer
	now    func() time.Time
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"add", "Record a transaction", runAdd},
	{"update", "Change a transaction", runUpdate},
	{"delete", "Delete a transaction", runDelete},
	{"list", "List transactions", runList},
	{"report", "Totals by category and month", runReport},
	{"budgets", "Budget vs spend for a month", runBudgets},
	{"set-budget", "Create or replace a budget", runSetBudget},
	{"delete-budget", "Delete a budget", runDeleteBudget},
	{"categories", "List categories", runCategories},
	{"add-category", "Define a category", runAddCategory},
	{"overview", "Report and budgets for a month", runOverview},
	{"stats", "Stored record counts", runStats},
	{"check", "Verify the store is reachable", runCheck},
}

func main() {
	cli.LoadEnvFile()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage(stdout)
		return 0
	}
	cmd, ok := lookup(name)
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", name)
		printUsage(stderr)
		return 1
	}

	cfg, err := cli.LoadConfig()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentCLI, stderr)

	result, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	svc := cli.NewReportService(cfg, result, cli.ConnectPublisher(logger, cfg), nil, logger)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("Close failed", log.FieldError, err)
		}
	}()

	a := &app{cfg: cfg, store: result, svc: svc, logger: logger, out: stdout, errOut: stderr, now: time.Now}
	if err := cmd.run(log.WithLogger(ctx, logger), a, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		printError(stderr, err)
		return 1
	}
	return 0
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "fintrack - personal finance ledger")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  fintrack <command> [options]")
	fmt.Fprintln(w, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-14s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w, "\nRun 'fintrack <command> -h' for the options of a command.")
}

// printError prints rejected input field by field and everything else on
// one line.
func printError(w io.Writer, err error) {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintln(w, "invalid input:")
		keys := make([]string, 0, len(verr.Fields))
		for k := range verr.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, verr.Fields[k])
		}
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
