package main

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/fwojciec/docingest"
	"github.com/fwojciec/docingest/worker"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// Worker holds the collaborators of in-process workers.
	Worker worker.Config

	// Spawn creates the execution unit of every task.
	Spawn docingest.Spawner

	Concurrency int
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Timeout     time.Duration `short:"t" default:"10s" env:"DOCINGEST_TIMEOUT" help:"Fetch timeout per page"`
	Render      bool          `short:"r" env:"DOCINGEST_RENDER" help:"Render pages in headless Chrome before extraction"`
	Markdown    bool          `short:"m" env:"DOCINGEST_MARKDOWN" help:"Add a Markdown rendering of the main content"`
	Isolate     bool          `env:"DOCINGEST_ISOLATE" help:"Run every task in its own worker process"`
	Rate        float64       `default:"0" env:"DOCINGEST_RATE" help:"Requests per second per host (0 means unlimited)"`
	Concurrency int           `short:"c" default:"3" env:"DOCINGEST_CONCURRENCY" help:"Tasks processed in parallel"`
	Verbose     bool          `short:"v" env:"DOCINGEST_VERBOSE" help:"Log progress to stderr"`
	UserAgent   string        `name:"user-agent" env:"DOCINGEST_USER_AGENT" help:"User-Agent header for HTTP fetches"`

	URL    URLCmd    `cmd:"" name:"url" help:"Extract title, text, links and headings from web pages"`
	PDF    PDFCmd    `cmd:"" name:"pdf" help:"Validate and describe local PDF files"`
	Worker WorkerCmd `cmd:"" hidden:"" help:"Serve an execution unit over stdin and stdout"`
}

// URLCmd is the "url" subcommand.
type URLCmd struct {
	URLs []string `arg:"" name:"url" help:"Absolute URLs to extract"`
}

// PDFCmd is the "pdf" subcommand.
type PDFCmd struct {
	Paths []string `arg:"" name:"path" help:"PDF files to describe"`
}

// WorkerCmd is the "worker" subcommand.
type WorkerCmd struct{}

// workerArgs returns the command line of an isolated worker carrying the
// flags that shape extraction.
func (c *CLI) workerArgs() []string {
	args := []string{
		"--timeout=" + c.Timeout.String(),
		"--rate=" + strconv.FormatFloat(c.Rate, 'f', -1, 64),
	}
	if c.Render {
		args = append(args, "--render")
	}
	if c.Markdown {
		args = append(args, "--markdown")
	}
	if c.Verbose {
		args = append(args, "--verbose")
	}
	if c.UserAgent != "" {
		args = append(args, "--user-agent="+c.UserAgent)
	}
	return append(args, "worker")
}
