package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fwojciec/docingest"
	"github.com/fwojciec/docingest/dispatcher"
	"golang.org/x/sync/errgroup"
)

// ErrTasksFailed is returned when at least one input did not yield a
// successful result.
var ErrTasksFailed = errors.New("one or more tasks failed")

// submitFunc hands one input to a ready dispatcher.
type submitFunc func(ctx context.Context, d *dispatcher.Dispatcher, input string) error

// runTasks processes every input on its own dispatcher and execution unit,
// at most deps.Concurrency at a time, and prints results in input order.
func runTasks(deps *Dependencies, kind docingest.TaskKind, inputs []string, submit submitFunc) error {
	results := make([]*docingest.Result, len(inputs))

	var g errgroup.Group
	g.SetLimit(deps.Concurrency)
	for i, input := range inputs {
		g.Go(func() error {
			results[i] = runTask(deps, kind, input, submit)
			return nil
		})
	}
	_ = g.Wait()

	enc := json.NewEncoder(deps.Stdout)
	enc.SetIndent("", "  ")
	failed := 0
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		if !r.Success {
			failed++
		}
	}

	if failed > 0 {
		return ErrTasksFailed
	}
	return nil
}

// runTask drives a single input through a fresh dispatcher.
func runTask(deps *Dependencies, kind docingest.TaskKind, input string, submit submitFunc) *docingest.Result {
	ctx := deps.Ctx
	d := dispatcher.New(deps.Spawn, dispatcherOptions(deps)...)
	defer func() { _ = d.Shutdown() }()

	done := make(chan *docingest.Result, 1)
	deliver := func(r *docingest.Result) {
		select {
		case done <- r:
		default:
		}
	}
	d.RegisterCallbacks(dispatcher.Callbacks{
		OnComplete: deliver,
		OnError: func(p docingest.ErrorPayload) {
			msg := p.Message
			if p.Error != "" {
				msg = p.Error
			}
			deliver(&docingest.Result{Operation: docingest.OperationError, Error: msg})
		},
	})

	if err := d.Initialize(); err != nil {
		return failure(kind, input, err)
	}
	if err := d.WaitReady(ctx); err != nil {
		return failure(kind, input, err)
	}

	if err := submit(ctx, d, input); err != nil {
		return failure(kind, input, err)
	}

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return failure(kind, input, ctx.Err())
	}
}

// failure reports an error that happened before the unit produced a result.
func failure(kind docingest.TaskKind, input string, err error) *docingest.Result {
	r := &docingest.Result{
		Operation: docingest.OperationFor(kind),
		Error:     docingest.ErrorMessage(err),
	}
	if kind == docingest.TaskPDF {
		r.Filename = filepath.Base(input)
	} else {
		r.URL = input
	}
	return r
}
