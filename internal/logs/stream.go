package logs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"slidesmith/internal/api"
)

// Source fetches hub events. *api.Client satisfies it.
type Source interface {
	Logs(ctx context.Context, q api.LogQuery) (api.LogStreamResponse, error)
}

// FollowOptions controls Follow.
type FollowOptions struct {
	Query api.LogQuery
	// Follow keeps polling after the backlog is drained.
	Follow   bool
	Interval time.Duration
}

// Follow drains events matching opts.Query from src and, with opts.Follow,
// keeps polling until ctx is cancelled.
func Follow(ctx context.Context, src Source, opts FollowOptions, emit func(api.LogEvent)) error {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	q := opts.Query
	for {
		resp, err := src.Logs(ctx, q)
		if err != nil {
			return err
		}
		for _, evt := range resp.Events {
			emit(evt)
		}
		if resp.Next > q.Since {
			q.Since = resp.Next
		}
		// A full page means more backlog is waiting.
		if q.Limit > 0 && len(resp.Events) >= q.Limit {
			continue
		}
		if !opts.Follow {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}

// FormatEvent renders evt on one line: time, level, component, message, then
// sorted key=value fields.
func FormatEvent(evt api.LogEvent) string {
	var b strings.Builder
	ts := evt.Timestamp
	if parsed, err := time.Parse(time.RFC3339Nano, evt.Timestamp); err == nil {
		ts = parsed.Local().Format("15:04:05")
	}
	fmt.Fprintf(&b, "%s %-5s", ts, strings.ToUpper(evt.Level))
	if evt.Component != "" {
		fmt.Fprintf(&b, " [%s]", evt.Component)
	}
	b.WriteString(" ")
	b.WriteString(evt.Message)

	fields := make(map[string]string, len(evt.Fields)+2)
	for k, v := range evt.Fields {
		fields[k] = v
	}
	if evt.DeckID != "" {
		fields["deck_id"] = evt.DeckID
	}
	if evt.JobID != "" {
		fields["job_id"] = evt.JobID
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, fields[k])
	}
	return b.String()
}
