package stdio

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/fwojciec/docingest"
)

// Ensure Unit implements docingest.Unit at compile time.
var _ docingest.Unit = (*Unit)(nil)

// Unit is the host side of an execution unit running in a child process.
type Unit struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	messages chan *docingest.Message
	logger   *slog.Logger

	mu         sync.Mutex
	enc        *json.Encoder
	terminated bool
}

// Option configures a Unit.
type Option func(*options)

type options struct {
	env    []string
	stderr io.Writer
	logger *slog.Logger
}

// WithEnv appends environment variables to the child's environment.
func WithEnv(env ...string) Option {
	return func(o *options) {
		o.env = append(o.env, env...)
	}
}

// WithStderr sets where the child's stderr goes. Defaults to os.Stderr.
func WithStderr(w io.Writer) Option {
	return func(o *options) {
		o.stderr = w
	}
}

// WithLogger sets the logger for protocol problems.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Spawn starts name with args as a child process speaking the envelope
// protocol.
func Spawn(name string, args []string, opts ...Option) (*Unit, error) {
	o := options{
		stderr: os.Stderr,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cmd := exec.Command(name, args...)
	cmd.Stderr = o.stderr
	if len(o.env) > 0 {
		cmd.Env = append(os.Environ(), o.env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, docingest.Errorf(docingest.ECONSTRUCT, "failed to open unit stdin: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, docingest.Errorf(docingest.ECONSTRUCT, "failed to open unit stdout: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, docingest.Errorf(docingest.ECONSTRUCT, "failed to start unit: %v", err)
	}

	u := &Unit{
		cmd:      cmd,
		stdin:    stdin,
		enc:      json.NewEncoder(stdin),
		messages: make(chan *docingest.Message, 16),
		logger:   o.logger,
	}
	go u.read(stdout)
	return u, nil
}

// Spawner returns a docingest.Spawner that starts a fresh child per call.
func Spawner(name string, args []string, opts ...Option) docingest.Spawner {
	return func() (docingest.Unit, error) {
		return Spawn(name, args, opts...)
	}
}

// Post writes msg to the child's stdin.
func (u *Unit) Post(msg *docingest.Message) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.terminated {
		return docingest.Errorf(docingest.EINVALID, "unit is terminated")
	}
	if err := u.enc.Encode(msg); err != nil {
		return docingest.Errorf(docingest.EFAULT, "failed to write to unit: %v", err)
	}
	return nil
}

// Messages returns the envelopes read from the child's stdout. The channel
// is closed once the child has exited.
func (u *Unit) Messages() <-chan *docingest.Message {
	return u.messages
}

// Terminate kills the child process. It is safe to call more than once.
func (u *Unit) Terminate() error {
	u.mu.Lock()
	if u.terminated {
		u.mu.Unlock()
		return nil
	}
	u.terminated = true
	u.mu.Unlock()

	_ = u.stdin.Close()
	if err := u.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return docingest.Errorf(docingest.EINTERNAL, "failed to kill unit: %v", err)
	}
	return nil
}

func (u *Unit) read(stdout io.Reader) {
	defer close(u.messages)

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := docingest.DecodeMessage(line)
		if err != nil {
			u.logger.Warn("dropping malformed unit message", "error", err)
			continue
		}
		u.messages <- msg
	}
	if err := sc.Err(); err != nil {
		u.logger.Warn("unit stdout failed", "error", err)
	}

	if err := u.cmd.Wait(); err != nil {
		u.logger.Debug("unit exited", "error", err)
	}
}
