package console

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ziadkadry99/pageblocks/internal/audit"
	"github.com/ziadkadry99/pageblocks/internal/hostapi"
)

type scriptedRunner struct {
	results []*Result
	errs    []error
	got     []Command
}

func (r *scriptedRunner) Run(_ context.Context, cmd Command) (*Result, error) {
	i := len(r.got)
	r.got = append(r.got, cmd)
	if i < len(r.errs) && r.errs[i] != nil {
		return nil, r.errs[i]
	}
	return r.results[i], nil
}

func TestSessionTracksCwdAcrossCommands(t *testing.T) {
	runner := &scriptedRunner{results: []*Result{
		{Output: "", Cwd: "/srv/site"},
		{Output: "index.php", Cwd: "/srv/site"},
	}}
	s := NewSession(SessionOptions{Runner: runner})

	s.Submit(context.Background(), "cd /srv/site")
	s.Wait()
	s.Submit(context.Background(), "ls")
	s.Wait()

	if runner.got[1].Cwd != "/srv/site" {
		t.Errorf("second command cwd = %q", runner.got[1].Cwd)
	}
	if s.Cwd() != "/srv/site" {
		t.Errorf("Cwd = %q", s.Cwd())
	}
	lines := s.Lines()
	if len(lines) != 3 || lines[2].Text != "index.php" || lines[0].Kind != LineCommand {
		t.Errorf("lines = %+v", lines)
	}
}

func TestSessionRejectsEmptyAndConcurrentCommands(t *testing.T) {
	release := make(chan struct{})
	queued := make(chan func(), 1)
	runner := &blockingRunner{release: release}
	s := NewSession(SessionOptions{Runner: runner, Dispatch: func(f func()) { queued <- f }})

	if s.Submit(context.Background(), "   ") {
		t.Error("empty command accepted")
	}
	if !s.Submit(context.Background(), "sleep 1") {
		t.Fatal("first command rejected")
	}
	if s.Submit(context.Background(), "ls") {
		t.Error("second command accepted while busy")
	}
	close(release)
	(<-queued)()
	s.Wait()
	if s.Busy() {
		t.Error("session still busy")
	}
}

type blockingRunner struct{ release chan struct{} }

func (b *blockingRunner) Run(ctx context.Context, _ Command) (*Result, error) {
	<-b.release
	return &Result{}, nil
}

func TestSessionErrorsBecomeStderrLines(t *testing.T) {
	runner := &scriptedRunner{errs: []error{
		&hostapi.StatusError{Status: 403},
		hostapi.ErrMalformed,
		errors.New("dial tcp: refused"),
	}}
	s := NewSession(SessionOptions{Runner: runner})
	for _, cmd := range []string{"a", "b", "c"} {
		s.Submit(context.Background(), cmd)
		s.Wait()
	}
	want := []string{"Command failed", "Failed to parse response", "Network error"}
	var got []string
	for _, l := range s.Lines() {
		if l.Kind == LineStderr {
			got = append(got, l.Text)
		}
	}
	if len(got) != 3 {
		t.Fatalf("stderr lines = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSessionHistoryRecall(t *testing.T) {
	runner := &scriptedRunner{results: []*Result{{}, {}, {}}}
	s := NewSession(SessionOptions{Runner: runner})
	for _, cmd := range []string{"one", "two", "three"} {
		s.Submit(context.Background(), cmd)
		s.Wait()
	}

	steps := []struct {
		up   bool
		want string
	}{
		{true, "three"},
		{true, "two"},
		{true, "one"},
		{true, "one"},
		{false, "two"},
		{false, "three"},
		{false, ""},
	}
	for i, st := range steps {
		var got string
		if st.up {
			got = s.Prev()
		} else {
			got = s.Next()
		}
		if got != st.want {
			t.Errorf("step %d: got %q, want %q", i, got, st.want)
		}
	}
}

type memRecorder struct{ entries []audit.Entry }

func (m *memRecorder) Log(_ context.Context, e audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
}

func TestExecutorRunsAndReportsCwd(t *testing.T) {
	requireShell(t)
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	rec := &memRecorder{}
	e := &Executor{Enabled: true, Root: root, Audit: rec}

	res, err := e.Run(context.Background(), Command{Command: "echo hi; echo oops >&2; cd sub"}, "admin")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Output != "hi" || res.Error != "oops" || res.ExitCode != 0 {
		t.Errorf("result = %+v", res)
	}
	wantCwd, _ := filepath.EvalSymlinks(sub)
	gotCwd, _ := filepath.EvalSymlinks(res.Cwd)
	if gotCwd != wantCwd {
		t.Errorf("cwd = %q, want %q", res.Cwd, sub)
	}
	if len(rec.entries) != 1 || rec.entries[0].Summary != "echo hi; echo oops >&2; cd sub" || rec.entries[0].ActorID != "admin" {
		t.Errorf("audit = %+v", rec.entries)
	}
}

func TestExecutorExitCodeAndMissingCwd(t *testing.T) {
	requireShell(t)
	root := t.TempDir()
	e := &Executor{Enabled: true, Root: root}

	res, err := e.Run(context.Background(), Command{Command: "false", Cwd: "/definitely/not/here"}, "admin")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("exit = %d", res.ExitCode)
	}
	if res.Cwd != filepath.Clean(root) {
		gotCwd, _ := filepath.EvalSymlinks(res.Cwd)
		wantCwd, _ := filepath.EvalSymlinks(root)
		if gotCwd != wantCwd {
			t.Errorf("cwd = %q, want root %q", res.Cwd, root)
		}
	}
}

func TestExecutorTimeout(t *testing.T) {
	requireShell(t)
	e := &Executor{Enabled: true, Root: t.TempDir(), Timeout: 100 * time.Millisecond}
	res, err := e.Run(context.Background(), Command{Command: "sleep 3"}, "admin")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 124 {
		t.Errorf("exit = %d, want 124", res.ExitCode)
	}
}

func TestExecutorGuards(t *testing.T) {
	if _, err := (&Executor{}).Run(context.Background(), Command{Command: "ls"}, "x"); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
	if _, err := (&Executor{Enabled: true}).Run(context.Background(), Command{Command: "  "}, "x"); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestSplitCwd(t *testing.T) {
	out, cwd := splitCwd("a\nb\n\n"+cwdMarker+"/tmp\n", "/x")
	if out != "a\nb" || cwd != "/tmp" {
		t.Errorf("got %q %q", out, cwd)
	}
	out, cwd = splitCwd("plain\n", "/x")
	if out != "plain" || cwd != "/x" {
		t.Errorf("got %q %q", out, cwd)
	}
}
