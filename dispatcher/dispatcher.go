// Package dispatcher implements the host-side facade over an execution unit.
// A Dispatcher accepts URL and PDF submissions, forwards them to its unit as
// messages and relays the unit's events to registered callbacks.
package dispatcher

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/fwojciec/docingest"
	"github.com/google/uuid"
)

// StatusProcessing is the acknowledgment status of an accepted submission.
const StatusProcessing = "processing"

// Ack acknowledges an accepted submission. The result arrives later through
// the OnComplete callback.
type Ack struct {
	Status string             `json:"status"`
	TaskID string             `json:"taskId"`
	Kind   docingest.TaskKind `json:"kind"`
}

// Callbacks are the event channels of a Dispatcher. Callbacks run on the
// relay goroutine, one at a time, in emission order.
type Callbacks struct {
	OnProgress func(docingest.Progress)
	OnComplete func(*docingest.Result)
	OnError    func(docingest.ErrorPayload)
}

// CallbackStatus reports which callbacks are registered.
type CallbackStatus struct {
	Progress bool `json:"progress"`
	Complete bool `json:"complete"`
	Error    bool `json:"error"`
}

// Status is a snapshot of the dispatcher state.
type Status struct {
	Ready     bool           `json:"ready"`
	InFlight  bool           `json:"inFlight"`
	Callbacks CallbackStatus `json:"callbacks"`
}

// Dispatcher forwards tasks to a single execution unit, one at a time.
type Dispatcher struct {
	spawn  docingest.Spawner
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	unit      docingest.Unit
	ready     bool
	readyCh   chan struct{} // closed on worker_ready
	exited    chan struct{} // closed when the unit's stream ends
	inFlight  string
	callbacks Callbacks
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to discarding all records.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithClock sets the time source for submission timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// New creates a Dispatcher that creates its unit with spawn on Initialize.
func New(spawn docingest.Spawner, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		spawn:  spawn,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Initialize creates the execution unit and sends the readiness probe.
// It does not wait for the acknowledgment; see WaitReady.
func (d *Dispatcher) Initialize() error {
	d.mu.Lock()
	if d.unit != nil {
		d.mu.Unlock()
		return docingest.Errorf(docingest.EINVALID, "dispatcher is already initialized")
	}

	unit, err := d.spawn()
	if err != nil {
		onError := d.callbacks.OnError
		d.mu.Unlock()
		d.logger.Error("unit construction failed", "error", err)
		if onError != nil {
			onError(docingest.ErrorPayload{
				Type:    docingest.FaultConstruction,
				Message: docingest.ErrorMessage(err),
			})
		}
		return docingest.Errorf(docingest.ECONSTRUCT, "failed to create execution unit: %s", docingest.ErrorMessage(err))
	}

	d.unit = unit
	d.ready = false
	d.readyCh = make(chan struct{})
	d.exited = make(chan struct{})
	go d.relay(unit, d.exited)
	d.mu.Unlock()

	if err := unit.Post(&docingest.Message{Type: docingest.MessageInit}); err != nil {
		d.mu.Lock()
		if d.unit == unit {
			d.unit = nil
		}
		d.mu.Unlock()
		_ = unit.Terminate()
		return docingest.Errorf(docingest.ECONSTRUCT, "failed to probe execution unit: %s", docingest.ErrorMessage(err))
	}
	return nil
}

// WaitReady blocks until the unit acknowledges readiness, the unit exits or
// ctx is done.
func (d *Dispatcher) WaitReady(ctx context.Context) error {
	d.mu.Lock()
	if d.unit == nil {
		d.mu.Unlock()
		return docingest.Errorf(docingest.ENOTREADY, "dispatcher is not initialized")
	}
	readyCh, exited := d.readyCh, d.exited
	d.mu.Unlock()

	select {
	case <-readyCh:
		return nil
	case <-exited:
		return docingest.Errorf(docingest.EFAULT, "execution unit exited before it was ready")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitURL forwards a URL task. address must be an absolute URL.
func (d *Dispatcher) SubmitURL(address string) (*Ack, error) {
	if err := d.checkReady(); err != nil {
		return nil, err
	}
	if err := validateURL(address); err != nil {
		return nil, err
	}

	unit, task, err := d.reserve(docingest.TaskURL)
	if err != nil {
		return nil, err
	}
	task.URL = address

	return d.post(unit, task)
}

// SubmitPDF reads file and forwards a PDF task. The declared type is checked
// before any byte is read.
func (d *Dispatcher) SubmitPDF(ctx context.Context, file docingest.File) (*Ack, error) {
	if err := d.checkReady(); err != nil {
		return nil, err
	}
	if file == nil {
		return nil, docingest.Errorf(docingest.EINVALID, "a file is required")
	}
	if file.Type() != docingest.MIMETypePDF {
		return nil, docingest.Errorf(docingest.EINVALID, "file type must be %s, got %q", docingest.MIMETypePDF, file.Type())
	}

	unit, task, err := d.reserve(docingest.TaskPDF)
	if err != nil {
		return nil, err
	}

	data, err := readAll(ctx, file)
	if err != nil {
		d.release(task.ID)
		return nil, err
	}
	task.File = &docingest.FilePayload{
		Name:         file.Name(),
		Size:         file.Size(),
		Type:         file.Type(),
		LastModified: file.LastModified(),
		Data:         data,
	}

	return d.post(unit, task)
}

// RegisterCallbacks replaces every non-nil callback in cb. Nil fields leave
// the current callback in place.
func (d *Dispatcher) RegisterCallbacks(cb Callbacks) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb.OnProgress != nil {
		d.callbacks.OnProgress = cb.OnProgress
	}
	if cb.OnComplete != nil {
		d.callbacks.OnComplete = cb.OnComplete
	}
	if cb.OnError != nil {
		d.callbacks.OnError = cb.OnError
	}
}

// Status returns a snapshot of the dispatcher state.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Ready:    d.ready,
		InFlight: d.inFlight != "",
		Callbacks: CallbackStatus{
			Progress: d.callbacks.OnProgress != nil,
			Complete: d.callbacks.OnComplete != nil,
			Error:    d.callbacks.OnError != nil,
		},
	}
}

// Shutdown terminates the unit, abandoning any task in flight, and clears
// readiness and callbacks. It is safe to call more than once.
func (d *Dispatcher) Shutdown() error {
	d.mu.Lock()
	unit := d.unit
	d.unit = nil
	d.ready = false
	d.inFlight = ""
	d.callbacks = Callbacks{}
	d.mu.Unlock()

	if unit == nil {
		return nil
	}
	d.logger.Debug("shutting down execution unit")
	return unit.Terminate()
}

func (d *Dispatcher) checkReady() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unit == nil || !d.ready {
		return docingest.Errorf(docingest.ENOTREADY, "worker not ready")
	}
	return nil
}

// reserve marks a new task as in flight and returns the unit it belongs to.
func (d *Dispatcher) reserve(kind docingest.TaskKind) (docingest.Unit, *docingest.Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unit == nil || !d.ready {
		return nil, nil, docingest.Errorf(docingest.ENOTREADY, "worker not ready")
	}
	if d.inFlight != "" {
		return nil, nil, docingest.Errorf(docingest.EBUSY, "task %s is still in flight", d.inFlight)
	}
	task := &docingest.Task{
		ID:          uuid.NewString(),
		Kind:        kind,
		SubmittedAt: d.now(),
	}
	d.inFlight = task.ID
	return d.unit, task, nil
}

// release clears the in-flight marker if it still belongs to id.
func (d *Dispatcher) release(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight == id {
		d.inFlight = ""
	}
}

// post hands task to unit. The task, and the file buffer it carries, belong
// to the unit afterwards.
func (d *Dispatcher) post(unit docingest.Unit, task *docingest.Task) (*Ack, error) {
	msg, err := docingest.NewTaskMessage(task)
	if err != nil {
		d.release(task.ID)
		return nil, err
	}

	d.mu.Lock()
	current := d.unit == unit
	d.mu.Unlock()
	if !current {
		return nil, docingest.Errorf(docingest.ENOTREADY, "worker was shut down")
	}

	if err := unit.Post(msg); err != nil {
		d.release(task.ID)
		return nil, docingest.Errorf(docingest.EFAULT, "failed to post task: %s", docingest.ErrorMessage(err))
	}

	d.logger.Info("task submitted", "task_id", task.ID, "kind", task.Kind)
	return &Ack{Status: StatusProcessing, TaskID: task.ID, Kind: task.Kind}, nil
}

// relay dispatches the messages of unit until its stream ends.
func (d *Dispatcher) relay(unit docingest.Unit, exited chan struct{}) {
	defer close(exited)

	for msg := range unit.Messages() {
		d.dispatch(unit, msg)
	}

	d.mu.Lock()
	current := d.unit == unit
	var onError func(docingest.ErrorPayload)
	if current {
		d.unit = nil
		d.ready = false
		d.inFlight = ""
		onError = d.callbacks.OnError
	}
	d.mu.Unlock()

	if !current {
		return
	}
	d.logger.Warn("execution unit exited")
	if onError != nil {
		onError(docingest.ErrorPayload{
			Type:    docingest.FaultUnitExited,
			Message: "execution unit exited unexpectedly",
		})
	}
}

func (d *Dispatcher) dispatch(unit docingest.Unit, msg *docingest.Message) {
	d.mu.Lock()
	if d.unit != unit {
		d.mu.Unlock()
		return
	}
	cb := d.callbacks

	switch msg.Type {
	case docingest.MessageReady:
		if !d.ready {
			d.ready = true
			close(d.readyCh)
		}
		d.mu.Unlock()
		d.logger.Debug("worker ready")

	case docingest.MessageProgress:
		d.mu.Unlock()
		p, ok := msg.Payload.(*docingest.Progress)
		if ok && cb.OnProgress != nil {
			cb.OnProgress(*p)
		}

	case docingest.MessageComplete:
		d.inFlight = ""
		d.mu.Unlock()
		r, ok := msg.Payload.(*docingest.Result)
		if !ok {
			d.logger.Warn("completion without result")
			return
		}
		d.logger.Debug("task complete", "task_id", r.TaskID, "success", r.Success)
		if cb.OnComplete != nil {
			cb.OnComplete(r)
		}

	case docingest.MessageError:
		d.inFlight = ""
		d.mu.Unlock()
		var p docingest.ErrorPayload
		if ep, ok := msg.Payload.(*docingest.ErrorPayload); ok {
			p = *ep
		}
		d.logger.Warn("unit error", "type", p.Type, "message", p.Message)
		if cb.OnError != nil {
			cb.OnError(p)
		}

	default:
		d.mu.Unlock()
		d.logger.Warn("unexpected message from unit", "type", msg.Type)
	}
}

// validateURL accepts absolute URLs with a scheme and either a host or an
// opaque part.
func validateURL(address string) error {
	u, err := url.Parse(address)
	if err != nil {
		return docingest.Errorf(docingest.EINVALID, "Invalid URL: %s", address)
	}
	if u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
		return docingest.Errorf(docingest.EINVALID, "Invalid URL: %s", address)
	}
	return nil
}

// readAll reads the full content of file, giving up when ctx is done.
func readAll(ctx context.Context, file docingest.File) ([]byte, error) {
	rc, err := file.Open(ctx)
	if err != nil {
		return nil, docingest.Errorf(docingest.EINVALID, "failed to open %s: %s", file.Name(), docingest.ErrorMessage(err))
	}
	defer rc.Close()

	data, err := io.ReadAll(&contextReader{ctx: ctx, r: rc})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, docingest.Errorf(docingest.EINVALID, "failed to read %s: %v", file.Name(), err)
	}
	return data, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
