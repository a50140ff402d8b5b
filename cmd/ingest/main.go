package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/docingest"
	"github.com/fwojciec/docingest/dispatcher"
	"github.com/fwojciec/docingest/goquery"
	"github.com/fwojciec/docingest/htmltomarkdown"
	dochttp "github.com/fwojciec/docingest/http"
	"github.com/fwojciec/docingest/pdf"
	"github.com/fwojciec/docingest/rate"
	"github.com/fwojciec/docingest/rod"
	dislog "github.com/fwojciec/docingest/slog"
	"github.com/fwojciec/docingest/stdio"
	"github.com/fwojciec/docingest/worker"
	"github.com/fwojciec/docingest/xxhash"
	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()

	// Values from .env never override the real environment.
	_ = godotenv.Load()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Stdin feeds the worker subcommand.
	Stdin io.Reader

	// Executable is the binary started for isolated workers.
	// Defaults to the running executable.
	Executable string
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{Stdin: os.Stdin}
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdin:  m.Stdin,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("ingest"),
		kong.Description("Extract structured content from web pages and PDF files"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'ingest --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	deps.Logger = newLogger(stderr, cli.Verbose)
	deps.Concurrency = max(cli.Concurrency, 1)

	cfg := worker.Config{
		Parser:    dislog.NewLoggingParser(goquery.NewParser(), deps.Logger),
		Inspector: dislog.NewLoggingInspector(pdf.NewInspector(), deps.Logger),
		Hasher:    xxhash.Hasher{},
		Logger:    deps.Logger,
	}
	if cli.Markdown {
		cfg.Converter = htmltomarkdown.NewConverter()
	}

	cmd := strings.Fields(kongCtx.Command())[0]
	needsFetcher := cmd == "worker" || (cmd == "url" && !cli.Isolate)
	if needsFetcher {
		fetcher, err := m.newFetcher(cli, stderr)
		if err != nil {
			return err
		}
		defer fetcher.Close()
		cfg.Fetcher = dislog.NewLoggingFetcher(fetcher, deps.Logger)
	}
	deps.Worker = cfg

	if cli.Isolate && cmd != "worker" {
		exe, err := m.executable()
		if err != nil {
			return fmt.Errorf("failed to locate worker executable: %w", err)
		}
		deps.Spawn = stdio.Spawner(exe, cli.workerArgs(), stdio.WithStderr(stderr), stdio.WithLogger(deps.Logger))
	} else {
		deps.Spawn = worker.Spawner(cfg)
	}

	return kongCtx.Run(deps)
}

func (m *Main) newFetcher(cli *CLI, stderr io.Writer) (docingest.Fetcher, error) {
	var fetcher docingest.Fetcher
	if cli.Render {
		f, err := rod.NewFetcher(rod.WithFetchTimeout(cli.Timeout))
		if err != nil {
			fmt.Fprintln(stderr, "Hint: Chrome or Chromium must be installed for --render")
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		fetcher = f
	} else {
		opts := []dochttp.Option{dochttp.WithTimeout(cli.Timeout)}
		if cli.UserAgent != "" {
			opts = append(opts, dochttp.WithUserAgent(cli.UserAgent))
		}
		fetcher = dochttp.NewFetcher(opts...)
	}

	if cli.Rate > 0 {
		fetcher = rate.NewLimitedFetcher(fetcher, rate.NewDomainLimiter(cli.Rate))
	}
	return fetcher, nil
}

func (m *Main) executable() (string, error) {
	if m.Executable != "" {
		return m.Executable, nil
	}
	return os.Executable()
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(dislog.NewTaskHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// dispatcherOptions are shared by every dispatcher the commands create.
func dispatcherOptions(deps *Dependencies) []dispatcher.Option {
	return []dispatcher.Option{dispatcher.WithLogger(deps.Logger)}
}
