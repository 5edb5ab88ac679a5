package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"contest_judge/internal/domain/model"
)

const (
	msgTimeLimit        = "Time limit exceeded"
	msgMemoryLimit      = "Memory limit exceeded"
	msgCompileTimeLimit = "Compilation timed out"
)

// Limits bound a single sandboxed run.
type Limits struct {
	TimeLimit     time.Duration
	MemoryLimitMB int // 0 means the executor's configured ceiling
}

// Outcome is the classified result of one compile or run step.
type Outcome struct {
	Status   model.SubmissionStatus
	Output   string
	Message  string
	Duration time.Duration
}

// Executor opens per-submission sandbox sessions. Errors returned by any of its methods are
// infrastructure failures; verdicts are always reported through Outcome.
type Executor interface {
	Open(ctx context.Context, source string, profile Profile, limits Limits) (Session, error)
}

// Session owns one workspace. Compile runs at most once; Run may be called per test case.
type Session interface {
	Compile(ctx context.Context) (Outcome, error)
	Run(ctx context.Context, input string) (Outcome, error)
	Close() error
}

// RunOnce materializes source, compiles it if needed and runs it against a single input.
func RunOnce(ctx context.Context, exec Executor, source, input string, profile Profile, limits Limits) (Outcome, error) {
	session, err := exec.Open(ctx, source, profile, limits)
	if err != nil {
		return Outcome{}, err
	}
	defer session.Close()

	compiled, err := session.Compile(ctx)
	if err != nil || compiled.Status != model.StatusAccepted {
		return compiled, err
	}
	return session.Run(ctx, input)
}

// wholeSeconds rounds d up to whole seconds, never below one.
func wholeSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

type workspace struct {
	dir string
}

func newWorkspace(baseDir, sourceFile, source string) (*workspace, error) {
	if strings.ContainsAny(sourceFile, `/\`) || sourceFile == "" || sourceFile == "." || sourceFile == ".." {
		return nil, fmt.Errorf("invalid source file name %q", sourceFile)
	}
	dir, err := os.MkdirTemp(baseDir, "submission-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	// The sandbox user may differ from the host user and must write build artifacts here.
	if err := os.Chmod(dir, 0o777); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("chmod workspace: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, sourceFile), []byte(source), 0o644); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("write source file: %w", err)
	}
	return &workspace{dir: dir}, nil
}

func (w *workspace) remove() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.dir, err)
	}
	return nil
}

// diagnostic picks the most useful text to show for a failed step.
func diagnostic(res cmdResult) string {
	stderr := strings.TrimSpace(res.Stderr)
	stdout := strings.TrimSpace(res.Stdout)
	switch {
	case stderr != "" && stdout != "":
		return stderr + "\n" + stdout
	case stderr != "":
		return stderr
	case stdout != "":
		return stdout
	default:
		return fmt.Sprintf("process exited with status %d", res.ExitCode)
	}
}
