// Package stdio runs execution units in a child process. Messages travel as
// line-delimited JSON envelopes: host to unit on the child's stdin, unit to
// host on its stdout.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fwojciec/docingest"
)

// MaxLineSize bounds a single envelope. PDF payloads are base64 encoded, so
// this leaves room for roughly 48MB of file data.
const MaxLineSize = 64 << 20

// Serve connects unit to r and w until the unit's message stream ends.
// Reaching EOF on r or cancelling ctx terminates the unit.
func Serve(ctx context.Context, unit docingest.Unit, r io.Reader, w io.Writer) error {
	stop := context.AfterFunc(ctx, func() { _ = unit.Terminate() })
	defer stop()

	faults := make(chan *docingest.Message, 1)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readInto(unit, r, faults)
		_ = unit.Terminate()
	}()

	enc := json.NewEncoder(w)
	var writeErr error
	write := func(msg *docingest.Message) {
		if writeErr != nil {
			return
		}
		if err := enc.Encode(msg); err != nil {
			writeErr = fmt.Errorf("write message: %w", err)
			_ = unit.Terminate()
		}
	}

	messages := unit.Messages()
	for messages != nil {
		select {
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			write(msg)
		case msg := <-faults:
			write(msg)
		}
	}

	if writeErr != nil {
		return writeErr
	}
	select {
	case err := <-readErr:
		return err
	default:
		return nil
	}
}

// readInto decodes envelopes from r and posts them to unit. Lines that do
// not decode are answered through faults.
func readInto(unit docingest.Unit, r io.Reader, faults chan<- *docingest.Message) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := docingest.DecodeMessage(line)
		if err != nil {
			faults <- &docingest.Message{
				Type: docingest.MessageError,
				Payload: &docingest.ErrorPayload{
					Type:    docingest.FaultUnknownMessage,
					Message: docingest.ErrorMessage(err),
				},
			}
			continue
		}
		if err := unit.Post(msg); err != nil {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read message: %w", err)
	}
	return nil
}
