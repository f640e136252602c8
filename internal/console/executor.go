package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ziadkadry99/pageblocks/internal/audit"
)

const cwdMarker = "__PB_CWD__"

// ErrDisabled is returned when the console feature is off.
var ErrDisabled = errors.New("console is disabled")

// ErrEmptyCommand is returned for blank commands.
var ErrEmptyCommand = errors.New("command is empty")

// Executor runs console commands on the host.
type Executor struct {
	Enabled bool
	// Shell runs each command with -c. Defaults to /bin/sh.
	Shell   string
	Timeout time.Duration
	// Root is the working directory used when the request has none or
	// names a directory that no longer exists.
	Root  string
	Audit audit.Recorder
}

// Run executes cmd on behalf of actor and reports the working directory
// the command left behind.
func (e *Executor) Run(ctx context.Context, cmd Command, actor string) (*Result, error) {
	if !e.Enabled {
		return nil, ErrDisabled
	}
	command := strings.TrimSpace(cmd.Command)
	if command == "" {
		return nil, ErrEmptyCommand
	}
	dir := e.workdir(cmd.Cwd)

	shell := e.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	script := command + "\n__pb_status=$?\nprintf '\\n" + cwdMarker + "%s\\n' \"$(pwd)\"\nexit $__pb_status"
	c := exec.CommandContext(ctx, shell, "-c", script)
	c.Dir = dir
	c.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := &Result{Error: strings.TrimRight(stderr.String(), "\n"), Cwd: dir}
	res.Output, res.Cwd = splitCwd(stdout.String(), dir)

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.ExitCode = 124
		res.Error = strings.TrimSpace(res.Error + "\ncommand timed out after " + timeout.String())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		return nil, fmt.Errorf("running command: %w", err)
	}

	log.Printf("[console] %s ran %q in %s (exit %d)", actor, command, dir, res.ExitCode)
	audit.Record(context.WithoutCancel(ctx), e.Audit, audit.Entry{
		ActorType: audit.ActorUser,
		ActorID:   actor,
		Action:    audit.ActionConsoleExecuted,
		Scope:     audit.ScopeConsole,
		ScopeID:   dir,
		Summary:   command,
		Detail:    fmt.Sprintf("exit %d", res.ExitCode),
	})
	return res, nil
}

func (e *Executor) workdir(requested string) string {
	for _, dir := range []string{requested, e.Root} {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return filepath.Clean(dir)
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "/"
}

// splitCwd removes the trailing working-directory marker from output.
func splitCwd(output, fallback string) (string, string) {
	i := strings.LastIndex(output, "\n"+cwdMarker)
	if i < 0 {
		return strings.TrimRight(output, "\n"), fallback
	}
	cwd := strings.TrimSpace(output[i+1+len(cwdMarker):])
	if cwd == "" {
		cwd = fallback
	}
	return strings.TrimRight(output[:i], "\n"), cwd
}
