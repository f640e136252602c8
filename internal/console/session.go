// Package console is a remote shell multiplexed over request/response
// pairs. Session is the builder side with history and the working
// directory; Executor is the host side that runs the commands.
package console

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ziadkadry99/pageblocks/internal/hostapi"
)

// Command is one console request.
type Command struct {
	Command string `json:"command"`
	Cwd     string `json:"cwd"`
}

// Result is the outcome of one command.
type Result struct {
	Output   string `json:"output"`
	Error    string `json:"error"`
	ExitCode int    `json:"exitCode"`
	Cwd      string `json:"cwd"`
}

// Runner executes a command somewhere.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// HTTPRunner calls the host console endpoint.
type HTTPRunner struct {
	Client *hostapi.Client
}

func (h *HTTPRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	var res Result
	if err := h.Client.Post(ctx, "/api/console/exec", cmd, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// LineKind tags a console output line.
type LineKind string

const (
	LineCommand LineKind = "command"
	LineStdout  LineKind = "stdout"
	LineStderr  LineKind = "stderr"
)

// Line is one entry of the console transcript.
type Line struct {
	Kind LineKind `json:"kind"`
	Text string   `json:"text"`
}

// SessionOptions configures a Session.
type SessionOptions struct {
	Runner   Runner
	Dispatch func(func())
	Timeout  time.Duration
	// Output is called for every appended line.
	Output func(Line)
	// Busy reports in-flight changes.
	Busy func(bool)
}

// Session tracks history, the working directory and the transcript. It
// allows one command in flight.
type Session struct {
	runner   Runner
	dispatch func(func())
	timeout  time.Duration
	output   func(Line)
	onBusy   func(bool)
	wg       sync.WaitGroup

	history []string
	index   int
	cwd     string
	busy    bool
	lines   []Line
}

// NewSession creates a Session from opts.
func NewSession(opts SessionOptions) *Session {
	dispatch := opts.Dispatch
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Session{
		runner:   opts.Runner,
		dispatch: dispatch,
		timeout:  timeout,
		output:   opts.Output,
		onBusy:   opts.Busy,
		index:    -1,
	}
}

func (s *Session) Busy() bool        { return s.busy }
func (s *Session) Cwd() string       { return s.cwd }
func (s *Session) Lines() []Line     { return append([]Line(nil), s.lines...) }
func (s *Session) History() []string { return append([]string(nil), s.history...) }

// Wait blocks until the in-flight command has returned.
func (s *Session) Wait() { s.wg.Wait() }

// Clear empties the transcript.
func (s *Session) Clear() { s.lines = nil }

// Submit sends command. Empty commands and commands issued while
// another is in flight are rejected.
func (s *Session) Submit(ctx context.Context, command string) bool {
	command = strings.TrimSpace(command)
	if command == "" || s.busy || s.runner == nil {
		return false
	}
	s.append(LineCommand, "$ "+command)
	s.history = append(s.history, command)
	s.index = len(s.history)
	s.setBusy(true)

	req := Command{Command: command, Cwd: s.cwd}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		res, err := s.runner.Run(ctx, req)
		cancel()
		s.dispatch(func() { s.complete(res, err) })
	}()
	return true
}

func (s *Session) complete(res *Result, err error) {
	s.setBusy(false)
	if err == nil && res == nil {
		err = hostapi.ErrMalformed
	}
	if err != nil {
		s.append(LineStderr, errorText(err))
		return
	}
	if res.Output != "" {
		s.append(LineStdout, res.Output)
	}
	if res.Error != "" {
		s.append(LineStderr, res.Error)
	}
	if res.Cwd != "" {
		s.cwd = res.Cwd
	}
}

func errorText(err error) string {
	var se *hostapi.StatusError
	switch {
	case errors.Is(err, hostapi.ErrMalformed):
		return "Failed to parse response"
	case errors.As(err, &se):
		if se.Message != "" {
			return se.Message
		}
		return "Command failed"
	case errors.Is(err, hostapi.ErrConfig):
		return "Console endpoint is missing"
	default:
		return "Network error"
	}
}

// Prev recalls the previous history entry. At the oldest entry it stays
// put.
func (s *Session) Prev() string {
	if len(s.history) == 0 {
		return ""
	}
	if s.index > 0 {
		s.index--
	}
	if s.index < 0 {
		s.index = 0
	}
	return s.history[s.index]
}

// Next recalls the following history entry, or "" past the newest.
func (s *Session) Next() string {
	if s.index < len(s.history)-1 {
		s.index++
		return s.history[s.index]
	}
	s.index = len(s.history)
	return ""
}

func (s *Session) append(kind LineKind, text string) {
	l := Line{Kind: kind, Text: text}
	s.lines = append(s.lines, l)
	if s.output != nil {
		s.output(l)
	}
}

func (s *Session) setBusy(v bool) {
	s.busy = v
	if s.onBusy != nil {
		s.onBusy(v)
	}
}
