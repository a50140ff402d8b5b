// Package worker implements the extraction execution unit. A Worker is an
// actor: it owns its state and talks to its host only through messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/docingest"
	dislog "github.com/fwojciec/docingest/slog"
)

// Ensure Worker implements docingest.Unit at compile time.
var _ docingest.Unit = (*Worker)(nil)

// BusyMessage is the failure reported for a task that arrives while another
// is running.
const BusyMessage = "worker busy"

// Channel capacities. The host and the worker never block each other for
// longer than it takes to drain a full buffer.
const (
	inboxSize  = 16
	outboxSize = 16
)

// State is the lifecycle state of the most recent task.
type State string

// Task states.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Config holds the collaborators of a Worker.
type Config struct {
	Fetcher   docingest.Fetcher
	Parser    docingest.Parser
	Inspector docingest.Inspector
	Converter docingest.Converter // optional
	Hasher    docingest.Hasher    // optional
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Worker runs one task at a time and emits exactly one terminal message per
// task it accepts.
type Worker struct {
	extractor *Extractor
	logger    *slog.Logger

	inbox  chan *docingest.Message
	outbox chan *docingest.Message

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup

	startOnce sync.Once

	mu    sync.Mutex
	state State
}

// New creates a Worker. Call Start before posting messages.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		extractor: &Extractor{
			Fetcher:   cfg.Fetcher,
			Parser:    cfg.Parser,
			Inspector: cfg.Inspector,
			Converter: cfg.Converter,
			Hasher:    cfg.Hasher,
			Now:       cfg.Clock,
		},
		logger: logger,
		inbox:  make(chan *docingest.Message, inboxSize),
		outbox: make(chan *docingest.Message, outboxSize),
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
}

// Spawner returns a docingest.Spawner that starts a fresh Worker per call.
func Spawner(cfg Config) docingest.Spawner {
	return func() (docingest.Unit, error) {
		return New(cfg).Start(), nil
	}
}

// Start launches the message loop. Subsequent calls do nothing.
func (w *Worker) Start() *Worker {
	w.startOnce.Do(func() {
		go w.run()
	})
	return w
}

// Post delivers msg to the worker.
func (w *Worker) Post(msg *docingest.Message) error {
	select {
	case <-w.ctx.Done():
		return docingest.Errorf(docingest.EINVALID, "worker is terminated")
	default:
	}
	select {
	case w.inbox <- msg:
		return nil
	case <-w.ctx.Done():
		return docingest.Errorf(docingest.EINVALID, "worker is terminated")
	}
}

// Messages returns the worker's outgoing stream. It is closed after
// Terminate once every running task has returned.
func (w *Worker) Messages() <-chan *docingest.Message {
	return w.outbox
}

// Terminate stops the worker. A running task is cancelled and its result is
// never delivered.
func (w *Worker) Terminate() error {
	w.cancel()
	return nil
}

// State reports the state of the most recent task.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) run() {
	defer func() {
		w.tasks.Wait()
		close(w.outbox)
	}()
	for {
		select {
		case <-w.ctx.Done():
			return
		case msg := <-w.inbox:
			w.handle(msg)
		}
	}
}

func (w *Worker) handle(msg *docingest.Message) {
	switch msg.Type {
	case docingest.MessageInit:
		w.logger.Debug("worker ready")
		w.emit(&docingest.Message{Type: docingest.MessageReady})
	case docingest.MessageIngestURL, docingest.MessageIngestPDF:
		w.accept(msg)
	case docingest.MessageShutdown:
		w.cancel()
	default:
		w.logger.Warn("unknown message", "type", msg.Type)
		w.emit(&docingest.Message{
			Type: docingest.MessageError,
			Payload: &docingest.ErrorPayload{
				Type:    docingest.FaultUnknownMessage,
				Message: fmt.Sprintf("unknown message type: %s", msg.Type),
			},
		})
	}
}

// accept starts the task carried by msg, or rejects it when another task is
// running.
func (w *Worker) accept(msg *docingest.Message) {
	task, err := docingest.TaskFromMessage(msg)
	if err != nil {
		w.emit(&docingest.Message{
			Type: docingest.MessageError,
			Payload: &docingest.ErrorPayload{
				Type:    docingest.FaultUnknownMessage,
				Message: docingest.ErrorMessage(err),
			},
		})
		return
	}

	w.mu.Lock()
	if w.state == StateRunning {
		w.mu.Unlock()
		w.logger.Warn("task rejected", "task_id", task.ID, "reason", BusyMessage)
		w.emit(&docingest.Message{
			Type: docingest.MessageComplete,
			Payload: &docingest.Result{
				TaskID:    task.ID,
				Operation: docingest.OperationFor(task.Kind),
				Error:     BusyMessage,
				URL:       task.URL,
				Filename:  fileName(task),
			},
		})
		return
	}
	w.state = StateRunning
	w.mu.Unlock()

	w.tasks.Add(1)
	go w.execute(task)
}

func (w *Worker) execute(task *docingest.Task) {
	defer w.tasks.Done()

	ctx := dislog.WithTaskID(w.ctx, task.ID)

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			w.logger.ErrorContext(ctx, "task panicked", "kind", task.Kind, "panic", msg)
			w.setState(StateFailed)
			w.emit(&docingest.Message{
				Type: docingest.MessageError,
				Payload: &docingest.ErrorPayload{
					Type:      docingest.FaultWorker,
					Message:   msg,
					Operation: docingest.OperationError,
					Error:     msg,
				},
			})
		}
	}()

	var result *docingest.Result
	defer func(begin time.Time) {
		if result == nil {
			return
		}
		w.logger.InfoContext(ctx, "task",
			"kind", task.Kind,
			"success", result.Success,
			"error", result.Error,
			"duration", time.Since(begin),
		)
	}(time.Now())

	result = w.extractor.Run(ctx, task)

	if w.ctx.Err() != nil {
		return
	}
	if result.Success {
		w.setState(StateSucceeded)
	} else {
		w.setState(StateFailed)
	}
	w.emit(&docingest.Message{Type: docingest.MessageComplete, Payload: result})
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// emit sends msg to the host unless the worker has been terminated.
func (w *Worker) emit(msg *docingest.Message) {
	select {
	case w.outbox <- msg:
	case <-w.ctx.Done():
	}
}

func fileName(task *docingest.Task) string {
	if task.File == nil {
		return ""
	}
	return task.File.Name
}
