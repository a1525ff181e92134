package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Event is a structured log line retained by the Hub.
type Event struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	DeckID    string            `json:"deck_id,omitempty"`
	JobID     string            `json:"job_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Hub stores a bounded window of recent log events.
type Hub struct {
	mu       sync.Mutex
	capacity int
	buffer   []Event
	nextSeq  uint64
}

// NewHub constructs a hub holding at most capacity events.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	return &Hub{capacity: capacity}
}

// Publish appends evt, evicting the oldest event when full.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
}

// Since returns up to limit events with a sequence greater than since, plus
// the sequence to pass on the next call.
func (h *Hub) Since(since uint64, limit int) ([]Event, uint64) {
	if h == nil {
		return nil, since
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	out := make([]Event, 0, limit)
	for _, evt := range h.buffer {
		if evt.Sequence <= since {
			continue
		}
		out = append(out, evt)
		if len(out) == limit {
			break
		}
	}
	next := since
	if len(out) > 0 {
		next = out[len(out)-1].Sequence
	}
	return out, next
}

// Handler returns an slog.Handler that publishes records at or above level.
func (h *Hub) Handler(level slog.Level) slog.Handler {
	return &hubHandler{hub: h, level: level}
}

type hubHandler struct {
	hub    *Hub
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *hubHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *hubHandler) Handle(_ context.Context, record slog.Record) error {
	evt := Event{
		Timestamp: record.Time.UTC(),
		Level:     levelLabel(record.Level),
		Message:   record.Message,
	}
	fields := flatten(h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFlattened(fields, h.groups, attr)
		return true
	})
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			evt.Component = f.value.String()
		case FieldDeckID:
			evt.DeckID = f.value.String()
		case FieldJobID:
			evt.JobID = f.value.String()
		default:
			if evt.Fields == nil {
				evt.Fields = make(map[string]string)
			}
			evt.Fields[f.key] = formatValue(f.value)
		}
	}
	h.hub.Publish(evt)
	return nil
}

func (h *hubHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *hubHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}
