package dispatcher_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/docingest"
	"github.com/fwojciec/docingest/dispatcher"
	"github.com/fwojciec/docingest/goquery"
	"github.com/fwojciec/docingest/mock"
	"github.com/fwojciec/docingest/pdf"
	"github.com/fwojciec/docingest/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

// fakeUnit records posted messages and emits whatever the test sends on out.
type fakeUnit struct {
	*mock.Unit
	posted     chan *docingest.Message
	out        chan *docingest.Message
	terminated chan struct{}
}

func newFakeUnit() *fakeUnit {
	u := &fakeUnit{
		posted:     make(chan *docingest.Message, 16),
		out:        make(chan *docingest.Message, 16),
		terminated: make(chan struct{}),
	}
	var once sync.Once
	u.Unit = &mock.Unit{
		PostFn: func(msg *docingest.Message) error {
			u.posted <- msg
			return nil
		},
		MessagesFn: func() <-chan *docingest.Message {
			return u.out
		},
		TerminateFn: func() error {
			once.Do(func() {
				close(u.terminated)
				close(u.out)
			})
			return nil
		},
	}
	return u
}

func (u *fakeUnit) spawner() docingest.Spawner {
	return func() (docingest.Unit, error) {
		return u.Unit, nil
	}
}

func (u *fakeUnit) nextPosted(t *testing.T) *docingest.Message {
	t.Helper()
	select {
	case msg := <-u.posted:
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for posted message")
		return nil
	}
}

func (u *fakeUnit) assertNothingPosted(t *testing.T) {
	t.Helper()
	select {
	case msg := <-u.posted:
		t.Fatalf("unexpected message posted: %s", msg.Type)
	default:
	}
}

// readyDispatcher returns an initialized dispatcher whose unit has
// acknowledged readiness.
func readyDispatcher(t *testing.T) (*dispatcher.Dispatcher, *fakeUnit) {
	t.Helper()
	unit := newFakeUnit()
	d := dispatcher.New(unit.spawner())
	t.Cleanup(func() { _ = d.Shutdown() })

	require.NoError(t, d.Initialize())
	assert.Equal(t, docingest.MessageInit, unit.nextPosted(t).Type)

	unit.out <- &docingest.Message{Type: docingest.MessageReady}
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, d.WaitReady(ctx))
	return d, unit
}

func pdfFile(data []byte) *mock.File {
	return &mock.File{
		FileName: "paper.pdf",
		FileSize: int64(len(data)),
		FileType: docingest.MIMETypePDF,
		Modified: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Data:     data,
	}
}

func TestDispatcher_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("is not ready until the unit acknowledges", func(t *testing.T) {
		t.Parallel()

		unit := newFakeUnit()
		d := dispatcher.New(unit.spawner())
		t.Cleanup(func() { _ = d.Shutdown() })

		require.NoError(t, d.Initialize())
		unit.nextPosted(t)

		assert.False(t, d.Status().Ready)
		_, err := d.SubmitURL("https://example.com/")
		assert.Equal(t, docingest.ENOTREADY, docingest.ErrorCode(err))
		_, err = d.SubmitPDF(context.Background(), pdfFile([]byte("%PDF")))
		assert.Equal(t, docingest.ENOTREADY, docingest.ErrorCode(err))
		unit.assertNothingPosted(t)

		unit.out <- &docingest.Message{Type: docingest.MessageReady}
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		require.NoError(t, d.WaitReady(ctx))
		assert.True(t, d.Status().Ready)
	})

	t.Run("rejects submissions before initialization", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New(newFakeUnit().spawner())

		_, err := d.SubmitURL("https://example.com/")

		assert.Equal(t, docingest.ENOTREADY, docingest.ErrorCode(err))
		assert.Equal(t, docingest.ENOTREADY, docingest.ErrorCode(d.WaitReady(context.Background())))
	})

	t.Run("rejects a second initialization", func(t *testing.T) {
		t.Parallel()

		d, _ := readyDispatcher(t)

		err := d.Initialize()

		assert.Equal(t, docingest.EINVALID, docingest.ErrorCode(err))
	})

	t.Run("reports construction failures", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New(func() (docingest.Unit, error) {
			return nil, errors.New("no child process")
		})
		var got docingest.ErrorPayload
		d.RegisterCallbacks(dispatcher.Callbacks{
			OnError: func(p docingest.ErrorPayload) { got = p },
		})

		err := d.Initialize()

		assert.Equal(t, docingest.ECONSTRUCT, docingest.ErrorCode(err))
		assert.Equal(t, docingest.FaultConstruction, got.Type)
		assert.Equal(t, "no child process", got.Message)
		assert.False(t, d.Status().Ready)
	})

	t.Run("gives up waiting when the context ends", func(t *testing.T) {
		t.Parallel()

		unit := newFakeUnit()
		d := dispatcher.New(unit.spawner())
		t.Cleanup(func() { _ = d.Shutdown() })
		require.NoError(t, d.Initialize())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		assert.ErrorIs(t, d.WaitReady(ctx), context.DeadlineExceeded)
	})
}

func TestDispatcher_SubmitURL(t *testing.T) {
	t.Parallel()

	t.Run("accepts absolute URLs", func(t *testing.T) {
		t.Parallel()

		for _, address := range []string{
			"https://example.com/",
			"http://localhost:8080/docs?q=1#top",
			"ftp://files.example.org/readme.txt",
			"mailto:someone@example.com",
		} {
			d, unit := readyDispatcher(t)

			ack, err := d.SubmitURL(address)

			require.NoError(t, err, address)
			assert.Equal(t, dispatcher.StatusProcessing, ack.Status)
			assert.Equal(t, docingest.TaskURL, ack.Kind)
			assert.NotEmpty(t, ack.TaskID)

			msg := unit.nextPosted(t)
			require.Equal(t, docingest.MessageIngestURL, msg.Type)
			payload := msg.Payload.(*docingest.URLPayload)
			assert.Equal(t, address, payload.URL)
			assert.Equal(t, ack.TaskID, payload.TaskID)
		}
	})

	t.Run("rejects malformed URLs before posting", func(t *testing.T) {
		t.Parallel()

		d, unit := readyDispatcher(t)

		for _, address := range []string{
			"",
			"example.com",
			"/relative/path",
			"https://",
			"http://[::1",
			"not a url",
		} {
			_, err := d.SubmitURL(address)

			assert.Equal(t, docingest.EINVALID, docingest.ErrorCode(err), address)
		}
		unit.assertNothingPosted(t)
		assert.False(t, d.Status().InFlight)
	})

	t.Run("rejects a second task while one is in flight", func(t *testing.T) {
		t.Parallel()

		d, unit := readyDispatcher(t)
		_, err := d.SubmitURL("https://example.com/a")
		require.NoError(t, err)
		unit.nextPosted(t)

		_, err = d.SubmitURL("https://example.com/b")

		assert.Equal(t, docingest.EBUSY, docingest.ErrorCode(err))
		unit.assertNothingPosted(t)
	})

	t.Run("releases the task when posting fails", func(t *testing.T) {
		t.Parallel()

		d, unit := readyDispatcher(t)
		unit.PostFn = func(*docingest.Message) error {
			return errors.New("pipe closed")
		}

		_, err := d.SubmitURL("https://example.com/")

		assert.Equal(t, docingest.EFAULT, docingest.ErrorCode(err))
		assert.False(t, d.Status().InFlight)
	})
}

func TestDispatcher_SubmitPDF(t *testing.T) {
	t.Parallel()

	t.Run("transfers the file content", func(t *testing.T) {
		t.Parallel()

		d, unit := readyDispatcher(t)
		file := pdfFile([]byte("%PDF-1.4 body"))

		ack, err := d.SubmitPDF(context.Background(), file)

		require.NoError(t, err)
		assert.Equal(t, docingest.TaskPDF, ack.Kind)
		msg := unit.nextPosted(t)
		require.Equal(t, docingest.MessageIngestPDF, msg.Type)
		payload := msg.Payload.(*docingest.PDFPayload)
		assert.Equal(t, ack.TaskID, payload.TaskID)
		assert.Equal(t, "paper.pdf", payload.FileName)
		assert.Equal(t, int64(13), payload.FileSize)
		assert.Equal(t, docingest.MIMETypePDF, payload.FileType)
		assert.Equal(t, file.Modified.UnixMilli(), payload.LastModified)
		assert.Equal(t, []byte("%PDF-1.4 body"), payload.FileData)
	})

	t.Run("rejects other types without reading", func(t *testing.T) {
		t.Parallel()

		d, unit := readyDispatcher(t)
		opened := false
		file := &mock.File{
			FileName: "photo.png",
			FileType: "image/png",
			OpenFn: func(context.Context) (io.ReadCloser, error) {
				opened = true
				return nil, errors.New("unexpected read")
			},
		}

		_, err := d.SubmitPDF(context.Background(), file)

		assert.Equal(t, docingest.EINVALID, docingest.ErrorCode(err))
		assert.False(t, opened)
		unit.assertNothingPosted(t)
	})

	t.Run("rejects a missing file", func(t *testing.T) {
		t.Parallel()

		d, _ := readyDispatcher(t)

		_, err := d.SubmitPDF(context.Background(), nil)

		assert.Equal(t, docingest.EINVALID, docingest.ErrorCode(err))
	})

	t.Run("releases the task when the read fails", func(t *testing.T) {
		t.Parallel()

		d, unit := readyDispatcher(t)
		file := pdfFile(nil)
		file.OpenFn = func(context.Context) (io.ReadCloser, error) {
			return nil, errors.New("permission denied")
		}

		_, err := d.SubmitPDF(context.Background(), file)

		assert.Equal(t, docingest.EINVALID, docingest.ErrorCode(err))
		assert.False(t, d.Status().InFlight)
		unit.assertNothingPosted(t)
	})

	t.Run("stops reading when the context is cancelled", func(t *testing.T) {
		t.Parallel()

		d, unit := readyDispatcher(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := d.SubmitPDF(ctx, pdfFile([]byte("%PDF")))

		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, d.Status().InFlight)
		unit.assertNothingPosted(t)
	})
}

func TestDispatcher_Relay(t *testing.T) {
	t.Parallel()

	t.Run("delivers results and clears the task", func(t *testing.T) {
		t.Parallel()

		d, unit := readyDispatcher(t)
		results := make(chan *docingest.Result, 1)
		d.RegisterCallbacks(dispatcher.Callbacks{
			OnComplete: func(r *docingest.Result) { results <- r },
		})
		ack, err := d.SubmitURL("https://example.com/")
		require.NoError(t, err)
		assert.True(t, d.Status().InFlight)

		unit.out <- &docingest.Message{
			Type:    docingest.MessageComplete,
			Payload: &docingest.Result{TaskID: ack.TaskID, Operation: docingest.OperationHTML, Error: "x"},
		}

		select {
		case r := <-results:
			assert.Equal(t, ack.TaskID, r.TaskID)
		case <-time.After(waitTimeout):
			t.Fatal("no result delivered")
		}
		assert.False(t, d.Status().InFlight)
	})

	t.Run("delivers progress in order", func(t *testing.T) {
		t.Parallel()

		d, unit := readyDispatcher(t)
		stages := make(chan string, 3)
		d.RegisterCallbacks(dispatcher.Callbacks{
			OnProgress: func(p docingest.Progress) { stages <- p.Stage },
		})

		for _, stage := range []string{"fetch", "parse", "extract"} {
			unit.out <- &docingest.Message{Type: docingest.MessageProgress, Payload: &docingest.Progress{Stage: stage}}
		}

		for _, want := range []string{"fetch", "parse", "extract"} {
			select {
			case got := <-stages:
				assert.Equal(t, want, got)
			case <-time.After(waitTimeout):
				t.Fatal("progress not delivered")
			}
		}
	})

	t.Run("delivers unit errors and clears the task", func(t *testing.T) {
		t.Parallel()

		d, unit := readyDispatcher(t)
		faults := make(chan docingest.ErrorPayload, 1)
		d.RegisterCallbacks(dispatcher.Callbacks{
			OnError: func(p docingest.ErrorPayload) { faults <- p },
		})
		_, err := d.SubmitURL("https://example.com/")
		require.NoError(t, err)

		unit.out <- &docingest.Message{
			Type: docingest.MessageError,
			Payload: &docingest.ErrorPayload{
				Type:      docingest.FaultWorker,
				Message:   "boom",
				Operation: docingest.OperationError,
			},
		}

		select {
		case p := <-faults:
			assert.Equal(t, docingest.FaultWorker, p.Type)
			assert.Equal(t, "boom", p.Message)
		case <-time.After(waitTimeout):
			t.Fatal("error not delivered")
		}
		assert.False(t, d.Status().InFlight)
	})

	t.Run("reports a unit that exits on its own", func(t *testing.T) {
		t.Parallel()

		d, unit := readyDispatcher(t)
		faults := make(chan docingest.ErrorPayload, 1)
		d.RegisterCallbacks(dispatcher.Callbacks{
			OnError: func(p docingest.ErrorPayload) { faults <- p },
		})

		close(unit.out)

		select {
		case p := <-faults:
			assert.Equal(t, docingest.FaultUnitExited, p.Type)
		case <-time.After(waitTimeout):
			t.Fatal("exit not reported")
		}
		assert.Eventually(t, func() bool { return !d.Status().Ready }, waitTimeout, 5*time.Millisecond)
	})
}

func TestDispatcher_RegisterCallbacks(t *testing.T) {
	t.Parallel()

	d := dispatcher.New(newFakeUnit().spawner())
	assert.Equal(t, dispatcher.CallbackStatus{}, d.Status().Callbacks)

	d.RegisterCallbacks(dispatcher.Callbacks{
		OnComplete: func(*docingest.Result) {},
		OnError:    func(docingest.ErrorPayload) {},
	})
	d.RegisterCallbacks(dispatcher.Callbacks{
		OnProgress: func(docingest.Progress) {},
	})

	assert.Equal(t, dispatcher.CallbackStatus{Progress: true, Complete: true, Error: true}, d.Status().Callbacks)
}

func TestDispatcher_Status(t *testing.T) {
	t.Parallel()

	d, _ := readyDispatcher(t)
	d.RegisterCallbacks(dispatcher.Callbacks{OnComplete: func(*docingest.Result) {}})

	first := d.Status()
	second := d.Status()

	assert.Equal(t, first, second)
	assert.Equal(t, dispatcher.Status{
		Ready:     true,
		Callbacks: dispatcher.CallbackStatus{Complete: true},
	}, first)
}

func TestDispatcher_Shutdown(t *testing.T) {
	t.Parallel()

	t.Run("terminates the unit and clears state", func(t *testing.T) {
		t.Parallel()

		d, unit := readyDispatcher(t)
		d.RegisterCallbacks(dispatcher.Callbacks{
			OnProgress: func(docingest.Progress) {},
			OnComplete: func(*docingest.Result) {},
			OnError:    func(docingest.ErrorPayload) {},
		})
		_, err := d.SubmitURL("https://example.com/")
		require.NoError(t, err)

		require.NoError(t, d.Shutdown())

		select {
		case <-unit.terminated:
		case <-time.After(waitTimeout):
			t.Fatal("unit not terminated")
		}
		assert.Equal(t, dispatcher.Status{}, d.Status())
		_, err = d.SubmitURL("https://example.com/")
		assert.Equal(t, docingest.ENOTREADY, docingest.ErrorCode(err))
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		d, _ := readyDispatcher(t)

		require.NoError(t, d.Shutdown())
		require.NoError(t, d.Shutdown())
	})

	t.Run("does not report the terminated unit as a fault", func(t *testing.T) {
		t.Parallel()

		d, unit := readyDispatcher(t)
		var mu sync.Mutex
		var faults []docingest.ErrorPayload
		d.RegisterCallbacks(dispatcher.Callbacks{
			OnError: func(p docingest.ErrorPayload) {
				mu.Lock()
				faults = append(faults, p)
				mu.Unlock()
			},
		})

		require.NoError(t, d.Shutdown())
		<-unit.terminated

		mu.Lock()
		defer mu.Unlock()
		assert.Empty(t, faults)
	})

	t.Run("allows initializing again", func(t *testing.T) {
		t.Parallel()

		d, _ := readyDispatcher(t)
		require.NoError(t, d.Shutdown())

		require.NoError(t, d.Initialize())
	})
}

func TestDispatcher_WithWorker(t *testing.T) {
	t.Parallel()

	d := dispatcher.New(worker.Spawner(worker.Config{
		Fetcher: &mock.Fetcher{
			FetchFn: func(context.Context, string) (string, error) {
				return `<html><head><title>Paper</title></head><body><main>Abstract</main></body></html>`, nil
			},
		},
		Parser:    goquery.NewParser(),
		Inspector: pdf.NewInspector(),
	}))
	t.Cleanup(func() { _ = d.Shutdown() })

	results := make(chan *docingest.Result, 2)
	d.RegisterCallbacks(dispatcher.Callbacks{
		OnComplete: func(r *docingest.Result) { results <- r },
	})

	require.NoError(t, d.Initialize())
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, d.WaitReady(ctx))

	ack, err := d.SubmitURL("https://example.com/paper")
	require.NoError(t, err)
	r := awaitResult(t, results)
	assert.Equal(t, ack.TaskID, r.TaskID)
	assert.True(t, r.Success, r.Error)
	doc, ok := r.Document()
	require.True(t, ok)
	assert.Equal(t, "Paper", doc.Title)
	assert.Equal(t, "Abstract", doc.Content)

	ack, err = d.SubmitPDF(ctx, pdfFile([]byte("PK\x03\x04")))
	require.NoError(t, err)
	r = awaitResult(t, results)
	assert.Equal(t, ack.TaskID, r.TaskID)
	assert.False(t, r.Success)
	assert.Equal(t, "Failed to process PDF: Invalid PDF file signature", r.Error)
	assert.Equal(t, "paper.pdf", r.Filename)
}

func awaitResult(t *testing.T, results <-chan *docingest.Result) *docingest.Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("no result delivered")
		return nil
	}
}
