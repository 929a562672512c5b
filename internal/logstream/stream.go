// Package logstream layers the daemon's log transports behind a single
// streaming entry point for the CLI.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"argus/internal/api"
	"argus/internal/ipc"
	"argus/internal/logs"
)

var ErrFiltersRequireAPI = errors.New("log filters require API access")

// TailClient captures the IPC log tail contract used for fallback streaming.
type TailClient interface {
	LogTail(req ipc.LogTailRequest) (*ipc.LogTailResponse, error)
}

// Filters contains optional predicates supported by API log streaming.
type Filters struct {
	Component string
	Level     string
	CameraID  string
}

func (f Filters) empty() bool {
	return strings.TrimSpace(f.Component) == "" &&
		strings.TrimSpace(f.Level) == "" &&
		strings.TrimSpace(f.CameraID) == ""
}

// Options controls stream behavior.
type Options struct {
	Lines   int
	Follow  bool
	Filters Filters
}

// Stream emits log events from the HTTP API when available, falling back to
// IPC tailing, then to reading the log file directly when the daemon is
// offline. It returns true when at least one event or line was emitted.
func Stream(
	ctx context.Context,
	apiClient *logs.StreamClient,
	legacy TailClient,
	logPath string,
	opts Options,
	onEvent func(api.LogEvent),
	onLine func(string),
) (bool, error) {
	printed, err := streamAPI(ctx, apiClient, opts, onEvent)
	if err == nil {
		return printed, nil
	}
	if !logs.IsAPIUnavailable(err) {
		return printed, err
	}
	if legacy != nil {
		printed, ipcErr := streamIPC(ctx, legacy, opts, onEvent)
		if ipcErr == nil {
			return printed, nil
		}
	}
	if !opts.Filters.empty() {
		return false, fmt.Errorf("%w: %w", ErrFiltersRequireAPI, logs.ErrAPIUnavailable)
	}
	if logPath == "" {
		return false, logs.ErrAPIUnavailable
	}
	return streamFile(ctx, logPath, opts, onLine)
}

func streamAPI(
	ctx context.Context,
	client *logs.StreamClient,
	opts Options,
	onEvent func(api.LogEvent),
) (bool, error) {
	query := logs.StreamQuery{
		Limit:     opts.Lines,
		Tail:      true,
		Component: opts.Filters.Component,
		Level:     opts.Filters.Level,
		CameraID:  opts.Filters.CameraID,
	}
	if query.Limit <= 0 {
		query.Limit = 200
	}

	printed := false
	for {
		resp, err := client.Fetch(ctx, query)
		if err != nil {
			return printed, err
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		query.Since = resp.Next
		query.Limit = 200
		query.Tail = false
		query.Follow = true
	}
}

func streamIPC(ctx context.Context, client TailClient, opts Options, onEvent func(api.LogEvent)) (bool, error) {
	limit := opts.Lines
	if limit <= 0 {
		limit = 200
	}

	var since uint64
	first := true
	printed := false
	for {
		resp, err := client.LogTail(ipc.LogTailRequest{
			Since:      since,
			Limit:      limit,
			Follow:     opts.Follow && !first,
			WaitMillis: 1000,
		})
		if err != nil {
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return printed, errors.New("log tail response missing")
		}
		for _, evt := range resp.Events {
			if !matchesFilters(evt, opts.Filters) {
				continue
			}
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		since = resp.Next
		first = false
		if !opts.Follow {
			return printed, nil
		}
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
	}
}

func matchesFilters(evt api.LogEvent, f Filters) bool {
	if f.Component != "" && !strings.EqualFold(f.Component, evt.Component) {
		return false
	}
	if f.Level != "" && !strings.EqualFold(f.Level, evt.Level) {
		return false
	}
	if f.CameraID != "" && f.CameraID != evt.CameraID {
		return false
	}
	return true
}

func streamFile(ctx context.Context, path string, opts Options, onLine func(string)) (bool, error) {
	initialLimit := opts.Lines
	if initialLimit < 0 {
		initialLimit = 0
	}
	initialOffset := int64(-1)
	if initialLimit == 0 {
		initialOffset = 0
	}

	offset := initialOffset
	limit := initialLimit
	printed := false
	for {
		result, err := logs.Tail(ctx, path, logs.TailOptions{
			Offset: offset,
			Limit:  limit,
			Follow: opts.Follow,
			Wait:   time.Second,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return printed, nil
			}
			return printed, fmt.Errorf("tail log file: %w", err)
		}
		for _, line := range result.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		offset = result.Offset
		limit = 0
		if !opts.Follow {
			return printed, nil
		}
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
	}
}
