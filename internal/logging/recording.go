package logging

import "sync"

// Entry is one captured log line, used by the Recording Logger in tests.
type Entry struct {
	Level  string
	Msg    string
	Fields []interface{}
}

// Recording is a test-only Logger that captures entries instead of
// writing them anywhere, so tests can assert on what the engine logged.
type Recording struct {
	mu      sync.Mutex
	entries []Entry
	fields  []interface{}
}

// NewRecording returns an empty Recording logger.
func NewRecording() *Recording {
	return &Recording{}
}

func (r *Recording) record(level, msg string, fields []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: append(append([]interface{}{}, r.fields...), fields...)})
}

func (r *Recording) Debug(msg string, fields ...interface{}) { r.record("debug", msg, fields) }
func (r *Recording) Info(msg string, fields ...interface{})  { r.record("info", msg, fields) }
func (r *Recording) Warn(msg string, fields ...interface{})  { r.record("warn", msg, fields) }
func (r *Recording) Error(msg string, fields ...interface{}) { r.record("error", msg, fields) }
func (r *Recording) Fatal(msg string, fields ...interface{}) { r.record("fatal", msg, fields) }

func (r *Recording) With(fields ...interface{}) Logger {
	return &Recording{fields: append(append([]interface{}{}, r.fields...), fields...)}
}

// Entries returns a copy of everything recorded so far.
func (r *Recording) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
