package logs_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"slidesmith/internal/api"
	"slidesmith/internal/logs"
)

type pagedSource struct {
	events  []api.LogEvent
	queries []api.LogQuery
	err     error
}

func (s *pagedSource) Logs(_ context.Context, q api.LogQuery) (api.LogStreamResponse, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return api.LogStreamResponse{}, s.err
	}
	var out []api.LogEvent
	for _, evt := range s.events {
		if evt.Sequence <= q.Since {
			continue
		}
		out = append(out, evt)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	next := q.Since
	if len(out) > 0 {
		next = out[len(out)-1].Sequence
	}
	return api.LogStreamResponse{Events: out, Next: next}, nil
}

func TestFollowDrainsBacklogInPages(t *testing.T) {
	src := &pagedSource{events: []api.LogEvent{
		{Sequence: 1, Message: "one"},
		{Sequence: 2, Message: "two"},
		{Sequence: 3, Message: "three"},
	}}
	var got []string
	err := logs.Follow(context.Background(), src, logs.FollowOptions{
		Query: api.LogQuery{Limit: 2, Component: "workflow"},
	}, func(evt api.LogEvent) { got = append(got, evt.Message) })
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if strings.Join(got, ",") != "one,two,three" {
		t.Fatalf("events = %v", got)
	}
	if len(src.queries) != 2 || src.queries[1].Since != 2 || src.queries[1].Component != "workflow" {
		t.Fatalf("queries = %+v", src.queries)
	}
}

func TestFollowStopsOnCancel(t *testing.T) {
	src := &pagedSource{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := logs.Follow(ctx, src, logs.FollowOptions{Follow: true}, func(api.LogEvent) {})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Follow err = %v, want canceled", err)
	}
}

func TestFollowReturnsSourceError(t *testing.T) {
	boom := errors.New("boom")
	err := logs.Follow(context.Background(), &pagedSource{err: boom}, logs.FollowOptions{}, func(api.LogEvent) {})
	if !errors.Is(err, boom) {
		t.Fatalf("Follow err = %v", err)
	}
}

func TestFormatEvent(t *testing.T) {
	line := logs.FormatEvent(api.LogEvent{
		Timestamp: "not-a-time",
		Level:     "info",
		Message:   "slide rendered",
		Component: "render-queue",
		JobID:     "job-2",
		Fields:    map[string]string{"attempt": "1"},
	})
	want := "not-a-time INFO  [render-queue] slide rendered attempt=1 job_id=job-2"
	if line != want {
		t.Fatalf("FormatEvent = %q, want %q", line, want)
	}
}
