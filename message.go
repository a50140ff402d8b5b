package docingest

import (
	"encoding/json"
	"time"
)

// MessageType identifies an envelope.
type MessageType string

// Host to unit.
const (
	MessageInit      MessageType = "init"
	MessageIngestURL MessageType = "ingest_url"
	MessageIngestPDF MessageType = "ingest_pdf"
	MessageShutdown  MessageType = "shutdown"
)

// Unit to host.
const (
	MessageReady    MessageType = "worker_ready"
	MessageProgress MessageType = "progress"
	MessageComplete MessageType = "ingest_complete"
	MessageError    MessageType = "error"
)

// Error payload types reported through the host's error channel.
const (
	FaultConstruction   = "construction_failure"
	FaultWorker         = "worker_fault"
	FaultUnitExited     = "unit_exited"
	FaultUnknownMessage = "unknown_message"
)

// Message is the envelope exchanged between the host and an execution unit.
// Payload is nil, *URLPayload, *PDFPayload, *Progress, *Result or
// *ErrorPayload depending on Type.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// URLPayload is the payload of an ingest_url message.
type URLPayload struct {
	TaskID    string `json:"taskId"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// PDFPayload is the payload of an ingest_pdf message.
// FileData is base64 encoded in JSON.
type PDFPayload struct {
	TaskID       string `json:"taskId"`
	FileName     string `json:"fileName"`
	FileSize     int64  `json:"fileSize"`
	FileType     string `json:"fileType"`
	LastModified int64  `json:"lastModified"`
	FileData     []byte `json:"fileData"`
	Timestamp    int64  `json:"timestamp"`
}

// Progress is an application-defined progress report.
type Progress struct {
	TaskID  string `json:"taskId,omitempty"`
	Stage   string `json:"stage"`
	Message string `json:"message,omitempty"`
}

// ErrorPayload describes a failure that is not a task result.
type ErrorPayload struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Operation Operation `json:"operation,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewTaskMessage builds the envelope that carries task to an execution unit.
// The message shares the file buffer with task, so the sender must drop task
// once the message is posted.
func NewTaskMessage(task *Task) (*Message, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}
	ts := task.SubmittedAt.UnixMilli()
	if task.Kind == TaskURL {
		return &Message{
			Type:    MessageIngestURL,
			Payload: &URLPayload{TaskID: task.ID, URL: task.URL, Timestamp: ts},
		}, nil
	}
	f := task.File
	msg := &Message{
		Type: MessageIngestPDF,
		Payload: &PDFPayload{
			TaskID:       task.ID,
			FileName:     f.Name,
			FileSize:     f.Size,
			FileType:     f.Type,
			LastModified: f.LastModified.UnixMilli(),
			FileData:     f.Data,
			Timestamp:    ts,
		},
	}
	return msg, nil
}

// TaskFromMessage rebuilds a Task from an ingest envelope.
func TaskFromMessage(msg *Message) (*Task, error) {
	switch p := msg.Payload.(type) {
	case *URLPayload:
		return &Task{
			ID:          p.TaskID,
			Kind:        TaskURL,
			URL:         p.URL,
			SubmittedAt: time.UnixMilli(p.Timestamp),
		}, nil
	case *PDFPayload:
		return &Task{
			ID:   p.TaskID,
			Kind: TaskPDF,
			File: &FilePayload{
				Name:         p.FileName,
				Size:         p.FileSize,
				Type:         p.FileType,
				LastModified: time.UnixMilli(p.LastModified),
				Data:         p.FileData,
			},
			SubmittedAt: time.UnixMilli(p.Timestamp),
		}, nil
	}
	return nil, Errorf(EINVALID, "message %q does not carry a task", msg.Type)
}

// DecodeMessage parses a JSON envelope and decodes its payload into the
// concrete type for its message type.
func DecodeMessage(data []byte) (*Message, error) {
	var env struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, Errorf(EINVALID, "invalid message envelope: %v", err)
	}

	msg := &Message{Type: env.Type}
	switch env.Type {
	case MessageInit, MessageReady, MessageShutdown:
		return msg, nil
	case MessageIngestURL:
		msg.Payload = &URLPayload{}
	case MessageIngestPDF:
		msg.Payload = &PDFPayload{}
	case MessageProgress:
		msg.Payload = &Progress{}
	case MessageComplete:
		msg.Payload = &Result{}
	case MessageError:
		msg.Payload = &ErrorPayload{}
	default:
		return nil, Errorf(EINVALID, "unknown message type %q", env.Type)
	}

	if len(env.Payload) == 0 {
		return nil, Errorf(EINVALID, "message %q requires a payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, msg.Payload); err != nil {
		return nil, Errorf(EINVALID, "invalid %s payload: %v", env.Type, err)
	}
	return msg, nil
}

// UnmarshalJSON decodes Data into the extract type matching Operation.
func (r *Result) UnmarshalJSON(data []byte) error {
	type result Result
	var aux struct {
		result
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Result(aux.result)
	r.Data = nil

	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		return nil
	}
	switch r.Operation {
	case OperationHTML:
		var d DocumentExtract
		if err := json.Unmarshal(aux.Data, &d); err != nil {
			return err
		}
		r.Data = &d
	case OperationPDF:
		var f FileExtract
		if err := json.Unmarshal(aux.Data, &f); err != nil {
			return err
		}
		r.Data = &f
	default:
		var v any
		if err := json.Unmarshal(aux.Data, &v); err != nil {
			return err
		}
		r.Data = v
	}
	return nil
}
