package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"contest_judge/internal/domain/model"
	"contest_judge/internal/platform/logger"
	"contest_judge/internal/platform/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// exit statuses produced inside the container
	exitTimeout   = 124 // coreutils timeout
	exitKilled    = 137 // SIGKILL, in practice the OOM killer
	exitDockerRun = 125 // docker itself failed to start the container, or the program chose 125

	dockerErrorPrefix = "docker:"

	containerWorkDir = "/workspace"
	removeTimeout    = 10 * time.Second
)

var errDockerRun = errors.New("docker failed to start the container")

type DockerConfig struct {
	Binary       string        // docker CLI, "docker" by default
	Image        string        // image holding every toolchain in the profile table
	MemoryLimit  string        // ceiling used when a problem sets none, e.g. "256m"
	CPUs         float64       // --cpus
	StartupGrace time.Duration // added to the outer deadline for container start/stop
	WorkDir      string        // parent of per-submission workspaces, "" = os.TempDir()
}

// DockerExecutor runs every step in a fresh `docker run --network none` container
// with the submission workspace bind-mounted.
type DockerExecutor struct {
	cfg    DockerConfig
	runner commandRunner
}

func NewDockerExecutor(cfg DockerConfig) (*DockerExecutor, error) {
	return newDockerExecutor(cfg, execRunner{})
}

func newDockerExecutor(cfg DockerConfig, runner commandRunner) (*DockerExecutor, error) {
	if cfg.Binary == "" {
		cfg.Binary = "docker"
	}
	if cfg.Image == "" {
		return nil, fmt.Errorf("docker executor: image is required")
	}
	if cfg.MemoryLimit == "" {
		return nil, fmt.Errorf("docker executor: memory limit is required")
	}
	if cfg.CPUs <= 0 {
		return nil, fmt.Errorf("docker executor: cpus must be positive")
	}
	if cfg.StartupGrace < 0 {
		cfg.StartupGrace = 0
	}
	return &DockerExecutor{cfg: cfg, runner: runner}, nil
}

func (e *DockerExecutor) Open(ctx context.Context, source string, profile Profile, limits Limits) (Session, error) {
	ws, err := newWorkspace(e.cfg.WorkDir, profile.SourceFile, source)
	if err != nil {
		return nil, err
	}
	return &dockerSession{
		exec:    e,
		ws:      ws,
		profile: profile,
		limits:  limits,
		id:      uuid.NewString(),
	}, nil
}

type dockerSession struct {
	exec    *DockerExecutor
	ws      *workspace
	profile Profile
	limits  Limits
	id      string
	runs    int
}

func (s *dockerSession) Compile(ctx context.Context) (Outcome, error) {
	if !s.profile.NeedsCompile() {
		return Outcome{Status: model.StatusAccepted}, nil
	}
	res, err := s.container(ctx, "compile", s.profile.CompileCommand, "")
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

func (s *dockerSession) Run(ctx context.Context, input string) (Outcome, error) {
	s.runs++
	secs := wholeSeconds(s.limits.TimeLimit)
	command := fmt.Sprintf("timeout %d %s", secs, s.profile.RunCommand)
	res, err := s.container(ctx, "run-"+strconv.Itoa(s.runs), command, input)
	if err != nil {
		return Outcome{}, err
	}
	out := classifyRun(res)
	metrics.ObserveRun("run", string(out.Status), res.Duration)
	return out, nil
}

func classifyRun(res cmdResult) Outcome {
	out := Outcome{Duration: res.Duration}
	switch {
	case res.TimedOut || res.ExitCode == exitTimeout:
		out.Status = model.StatusTimeLimitExceeded
		out.Message = msgTimeLimit
	case res.ExitCode == exitKilled:
		out.Status = model.StatusMemoryLimitExceeded
		out.Message = msgMemoryLimit
	case res.ExitCode != 0:
		out.Status = model.StatusRuntimeError
		out.Message = diagnostic(res)
		out.Output = res.Stdout
	default:
		out.Status = model.StatusAccepted
		out.Output = res.Stdout
	}
	return out
}

func (s *dockerSession) Close() error {
	return s.ws.remove()
}

// container runs one shell command in a throwaway container. The outer deadline is the
// whole-second time limit plus the startup grace, so the in-container timeout fires first.
func (s *dockerSession) container(ctx context.Context, step, command, stdin string) (cmdResult, error) {
	cfg := s.exec.cfg
	name := fmt.Sprintf("executor-%s-%s", s.id, step)
	deadline := time.Duration(wholeSeconds(s.limits.TimeLimit))*time.Second + cfg.StartupGrace

	args := []string{
		"run", "--rm", "-i",
		"--name", name,
		"--memory", s.memoryLimit(),
		"--cpus", strconv.FormatFloat(cfg.CPUs, 'f', -1, 64),
		"--network", "none",
		"-v", s.ws.dir + ":" + containerWorkDir,
		"-w", containerWorkDir,
		cfg.Image,
		"bash", "-c", command,
	}
	defer s.removeContainer(name)

	res, err := s.exec.runner.Run(ctx, cmdSpec{
		Name:    cfg.Binary,
		Args:    args,
		Stdin:   stdin,
		Timeout: deadline,
	})
	if err != nil {
		return res, fmt.Errorf("docker run %s: %w", name, err)
	}
	if !res.TimedOut && res.ExitCode == exitDockerRun && dockerStartFailed(res.Stderr) {
		return res, fmt.Errorf("%w: %s", errDockerRun, diagnostic(res))
	}
	return res, nil
}

// dockerStartFailed tells the CLI's own 125 ("docker: Error response from daemon: ...") apart
// from a program inside the container that exited with 125.
func dockerStartFailed(stderr string) bool {
	for _, line := range strings.Split(stderr, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), dockerErrorPrefix) {
			return true
		}
	}
	return false
}

func (s *dockerSession) memoryLimit() string {
	if s.limits.MemoryLimitMB > 0 {
		return strconv.Itoa(s.limits.MemoryLimitMB) + "m"
	}
	return s.exec.cfg.MemoryLimit
}

// removeContainer force-removes the container. --rm already handles the normal path; this
// covers containers left behind by a killed client. Failures are logged only.
func (s *dockerSession) removeContainer(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()
	res, err := s.exec.runner.Run(ctx, cmdSpec{
		Name: s.exec.cfg.Binary,
		Args: []string{"rm", "-f", name},
	})
	if err != nil || res.TimedOut {
		logger.Warn(ctx, "failed to remove container", zap.String("container", name), zap.Error(err))
		return
	}
	if res.ExitCode != 0 {
		logger.Debug(ctx, "container already gone", zap.String("container", name), zap.Int("exit_code", res.ExitCode))
	}
}
