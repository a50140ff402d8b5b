package main

import (
	"context"

	"github.com/fwojciec/docingest"
	"github.com/fwojciec/docingest/dispatcher"
	"github.com/fwojciec/docingest/fs"
	"github.com/fwojciec/docingest/stdio"
	"github.com/fwojciec/docingest/worker"
)

// Run executes the url command.
func (c *URLCmd) Run(deps *Dependencies) error {
	return runTasks(deps, docingest.TaskURL, c.URLs, func(_ context.Context, d *dispatcher.Dispatcher, input string) error {
		_, err := d.SubmitURL(input)
		return err
	})
}

// Run executes the pdf command.
func (c *PDFCmd) Run(deps *Dependencies) error {
	return runTasks(deps, docingest.TaskPDF, c.Paths, func(ctx context.Context, d *dispatcher.Dispatcher, input string) error {
		file, err := fs.Stat(input)
		if err != nil {
			return err
		}
		_, err = d.SubmitPDF(ctx, file)
		return err
	})
}

// Run executes the worker command.
func (c *WorkerCmd) Run(deps *Dependencies) error {
	w := worker.New(deps.Worker).Start()
	return stdio.Serve(deps.Ctx, w, deps.Stdin, deps.Stdout)
}
