package task

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Message is one line written by a job. Exactly one of End, Exit or
// Cancelled terminates the stream.
type Message struct {
	Task      string   `json:"task,omitempty"`
	Progress  *float64 `json:"progress,omitempty"`
	Log       string   `json:"log,omitempty"`
	End       bool     `json:"end,omitempty"`
	Exit      bool     `json:"exit,omitempty"`
	Code      int      `json:"code,omitempty"`
	Error     string   `json:"error,omitempty"`
	Cancelled bool     `json:"cancelled,omitempty"`
}

// Terminal reports whether m ends the stream
func (m Message) Terminal() bool {
	return m.End || m.Exit || m.Cancelled
}

// Payload is the single input of a job
type Payload interface {
	Kind() string
}

// Envelope tags a payload with its kind
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps p into an envelope
func Encode(p Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", p.Kind(), err)
	}
	return json.Marshal(Envelope{Kind: p.Kind(), Payload: raw})
}

// Reporter receives progress from a running job
type Reporter interface {
	Progress(phase string, fraction float64)
	Log(msg string)
}

// ReporterFunc adapts a message callback to a Reporter
type ReporterFunc func(Message)

func (f ReporterFunc) Progress(phase string, fraction float64) {
	f(Message{Task: phase, Progress: &fraction})
}

func (f ReporterFunc) Log(msg string) {
	f(Message{Log: msg})
}

// Emitter writes messages as JSON lines, the job side of the wire
type Emitter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewEmitter writes to w
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{enc: json.NewEncoder(w)}
}

func (e *Emitter) send(m Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.enc.Encode(m)
}

func (e *Emitter) Progress(phase string, fraction float64) {
	e.send(Message{Task: phase, Progress: &fraction})
}

func (e *Emitter) Log(msg string) {
	e.send(Message{Log: msg})
}

// End signals success
func (e *Emitter) End() {
	e.send(Message{End: true})
}

// Exit signals an explicit exit code, non-zero codes carry the error
func (e *Emitter) Exit(code int, err error) {
	m := Message{Exit: true, Code: code}
	if err != nil {
		m.Error = err.Error()
	}
	e.send(m)
}

func (e *Emitter) Cancelled() {
	e.send(Message{Cancelled: true})
}
