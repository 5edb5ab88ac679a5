package executor

import (
	"context"
	"fmt"
	"time"

	"contest_judge/internal/domain/model"
	"contest_judge/internal/platform/metrics"

	"github.com/google/shlex"
)

// LocalExecutor runs profiles directly on the host. It enforces time limits only and is meant
// for development machines without a container runtime.
type LocalExecutor struct {
	workDir string
	runner  commandRunner
}

func NewLocalExecutor(workDir string) *LocalExecutor {
	return &LocalExecutor{workDir: workDir, runner: execRunner{}}
}

func (e *LocalExecutor) Open(ctx context.Context, source string, profile Profile, limits Limits) (Session, error) {
	ws, err := newWorkspace(e.workDir, profile.SourceFile, source)
	if err != nil {
		return nil, err
	}
	return &localSession{exec: e, ws: ws, profile: profile, limits: limits}, nil
}

type localSession struct {
	exec    *LocalExecutor
	ws      *workspace
	profile Profile
	limits  Limits
}

func (s *localSession) Compile(ctx context.Context) (Outcome, error) {
	if !s.profile.NeedsCompile() {
		return Outcome{Status: model.StatusAccepted}, nil
	}
	res, err := s.run(ctx, s.profile.CompileCommand, "")
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Status: model.StatusAccepted, Duration: res.Duration}
	switch {
	case res.TimedOut:
		out.Status = model.StatusCompilationError
		out.Message = msgCompileTimeLimit
	case res.ExitCode != 0:
		out.Status = model.StatusCompilationError
		out.Message = diagnostic(res)
	}
	metrics.ObserveRun("compile", string(out.Status), res.Duration)
	return out, nil
}

func (s *localSession) Run(ctx context.Context, input string) (Outcome, error) {
	res, err := s.run(ctx, s.profile.RunCommand, input)
	if err != nil {
		return Outcome{}, err
	}
	out := classifyRun(res)
	// Without a container, SIGKILL comes from us or the user, not an enforced memory ceiling.
	if out.Status == model.StatusMemoryLimitExceeded {
		out.Status = model.StatusRuntimeError
		out.Message = diagnostic(res)
	}
	metrics.ObserveRun("run", string(out.Status), res.Duration)
	return out, nil
}

func (s *localSession) Close() error {
	return s.ws.remove()
}

func (s *localSession) run(ctx context.Context, command, stdin string) (cmdResult, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return cmdResult{}, fmt.Errorf("parse command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return cmdResult{}, fmt.Errorf("empty command for language %s", s.profile.Language)
	}
	return s.exec.runner.Run(ctx, cmdSpec{
		Name:    argv[0],
		Args:    argv[1:],
		Dir:     s.ws.dir,
		Stdin:   stdin,
		Timeout: time.Duration(wholeSeconds(s.limits.TimeLimit)) * time.Second,
	})
}
