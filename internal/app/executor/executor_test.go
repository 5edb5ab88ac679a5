package executor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"contest_judge/internal/domain/model"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []cmdSpec
	// respond returns the result for a `docker run`; `docker rm` always succeeds.
	respond func(spec cmdSpec) (cmdResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, spec cmdSpec) (cmdResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, spec)
	f.mu.Unlock()
	if len(spec.Args) > 0 && spec.Args[0] == "rm" {
		return cmdResult{}, nil
	}
	if f.respond == nil {
		return cmdResult{}, nil
	}
	return f.respond(spec)
}

func (f *fakeRunner) removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, c := range f.calls {
		if len(c.Args) == 3 && c.Args[0] == "rm" {
			names = append(names, c.Args[2])
		}
	}
	return names
}

func (f *fakeRunner) started() []cmdSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []cmdSpec
	for _, c := range f.calls {
		if len(c.Args) > 0 && c.Args[0] == "run" {
			out = append(out, c)
		}
	}
	return out
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func testDockerConfig(t *testing.T) DockerConfig {
	return DockerConfig{
		Binary:       "docker",
		Image:        "judge/image",
		MemoryLimit:  "256m",
		CPUs:         0.5,
		StartupGrace: 2 * time.Second,
		WorkDir:      t.TempDir(),
	}
}

func mustProfile(t *testing.T, lang string) Profile {
	t.Helper()
	table, err := DefaultTable("java")
	if err != nil {
		t.Fatalf("DefaultTable: %v", err)
	}
	p, ok := table.Lookup(lang)
	if !ok {
		t.Fatalf("no profile for %s", lang)
	}
	return p
}

func TestDockerRunArguments(t *testing.T) {
	runner := &fakeRunner{respond: func(spec cmdSpec) (cmdResult, error) {
		return cmdResult{Stdout: "8\n"}, nil
	}}
	exec, err := newDockerExecutor(testDockerConfig(t), runner)
	if err != nil {
		t.Fatal(err)
	}

	out, err := RunOnce(context.Background(), exec, "print(8)", "5 3", mustProfile(t, "python"),
		Limits{TimeLimit: 1500 * time.Millisecond, MemoryLimitMB: 128})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Status != model.StatusAccepted || out.Output != "8\n" {
		t.Fatalf("unexpected outcome %+v", out)
	}

	started := runner.started()
	if len(started) != 1 {
		t.Fatalf("python should need one container, got %d", len(started))
	}
	spec := started[0]
	if spec.Stdin != "5 3" {
		t.Errorf("stdin = %q", spec.Stdin)
	}
	if got := argValue(spec.Args, "--network"); got != "none" {
		t.Errorf("--network = %q", got)
	}
	if got := argValue(spec.Args, "--memory"); got != "128m" {
		t.Errorf("--memory = %q, want per-problem limit", got)
	}
	if got := argValue(spec.Args, "--cpus"); got != "0.5" {
		t.Errorf("--cpus = %q", got)
	}
	if got := argValue(spec.Args, "-w"); got != "/workspace" {
		t.Errorf("-w = %q", got)
	}
	if got := spec.Args[len(spec.Args)-1]; got != "timeout 2 python3 main.py" {
		t.Errorf("command = %q", got)
	}
	if spec.Timeout != 4*time.Second {
		t.Errorf("outer timeout = %v, want whole seconds plus grace", spec.Timeout)
	}

	name := argValue(spec.Args, "--name")
	if !strings.HasPrefix(name, "executor-") {
		t.Errorf("container name = %q", name)
	}
	if removed := runner.removed(); len(removed) != 1 || removed[0] != name {
		t.Errorf("removed = %v, want [%s]", removed, name)
	}
}

func TestDockerFallsBackToConfiguredMemory(t *testing.T) {
	runner := &fakeRunner{}
	exec, err := newDockerExecutor(testDockerConfig(t), runner)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := RunOnce(context.Background(), exec, "x", "", mustProfile(t, "python"), Limits{TimeLimit: time.Second}); err != nil {
		t.Fatal(err)
	}
	if got := argValue(runner.started()[0].Args, "--memory"); got != "256m" {
		t.Errorf("--memory = %q", got)
	}
}

func TestDockerCompileOnceAndShortCircuit(t *testing.T) {
	runner := &fakeRunner{respond: func(spec cmdSpec) (cmdResult, error) {
		cmd := spec.Args[len(spec.Args)-1]
		if cmd == "javac Main.java" {
			return cmdResult{ExitCode: 1, Stderr: "Main.java:1: error: ';' expected"}, nil
		}
		return cmdResult{}, nil
	}}
	exec, err := newDockerExecutor(testDockerConfig(t), runner)
	if err != nil {
		t.Fatal(err)
	}

	out, err := RunOnce(context.Background(), exec, "class Main {", "", mustProfile(t, "java"), Limits{TimeLimit: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.StatusCompilationError {
		t.Fatalf("status = %s", out.Status)
	}
	if !strings.Contains(out.Message, "error: ';' expected") {
		t.Errorf("message = %q", out.Message)
	}
	if n := len(runner.started()); n != 1 {
		t.Errorf("containers started = %d, want only the compile step", n)
	}
}

func TestDockerClassification(t *testing.T) {
	tests := []struct {
		name    string
		result  cmdResult
		status  model.SubmissionStatus
		message string
	}{
		{"inner timeout", cmdResult{ExitCode: exitTimeout}, model.StatusTimeLimitExceeded, msgTimeLimit},
		{"outer timeout", cmdResult{TimedOut: true, ExitCode: -1}, model.StatusTimeLimitExceeded, msgTimeLimit},
		{"oom killed", cmdResult{ExitCode: exitKilled}, model.StatusMemoryLimitExceeded, msgMemoryLimit},
		{"crash", cmdResult{ExitCode: 1, Stderr: "Traceback: ZeroDivisionError\n"}, model.StatusRuntimeError, "Traceback: ZeroDivisionError"},
		{"silent crash", cmdResult{ExitCode: 3}, model.StatusRuntimeError, "process exited with status 3"},
		{"program exits 125", cmdResult{ExitCode: exitDockerRun, Stdout: "partial"}, model.StatusRuntimeError, "partial"},
		{"program exits 125 silently", cmdResult{ExitCode: exitDockerRun}, model.StatusRuntimeError, "process exited with status 125"},
		{"program exits 125 with stderr", cmdResult{ExitCode: exitDockerRun, Stderr: "bad input\n"}, model.StatusRuntimeError, "bad input"},
		{"ok", cmdResult{Stdout: "42"}, model.StatusAccepted, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{respond: func(cmdSpec) (cmdResult, error) { return tt.result, nil }}
			exec, err := newDockerExecutor(testDockerConfig(t), runner)
			if err != nil {
				t.Fatal(err)
			}
			out, err := RunOnce(context.Background(), exec, "x", "", mustProfile(t, "python"), Limits{TimeLimit: time.Second})
			if err != nil {
				t.Fatal(err)
			}
			if out.Status != tt.status || out.Message != tt.message {
				t.Errorf("got (%s, %q), want (%s, %q)", out.Status, out.Message, tt.status, tt.message)
			}
			if len(runner.removed()) != 1 {
				t.Errorf("container not released")
			}
		})
	}
}

func TestDockerInfrastructureFailure(t *testing.T) {
	runner := &fakeRunner{respond: func(cmdSpec) (cmdResult, error) {
		return cmdResult{ExitCode: exitDockerRun, Stderr: "Unable to find image 'judge:latest' locally\n" +
			"docker: Error response from daemon: pull access denied for judge.\n" +
			"See 'docker run --help'.\n"}, nil
	}}
	cfg := testDockerConfig(t)
	exec, err := newDockerExecutor(cfg, runner)
	if err != nil {
		t.Fatal(err)
	}
	_, err = RunOnce(context.Background(), exec, "x", "", mustProfile(t, "python"), Limits{TimeLimit: time.Second})
	if !errors.Is(err, errDockerRun) {
		t.Fatalf("err = %v, want errDockerRun", err)
	}
	if len(runner.removed()) != 1 {
		t.Errorf("container not released")
	}
	entries, _ := os.ReadDir(cfg.WorkDir)
	if len(entries) != 0 {
		t.Errorf("workspace leaked: %v", entries)
	}
}

func TestDockerWorkspaceIsRemoved(t *testing.T) {
	var seen string
	runner := &fakeRunner{respond: func(spec cmdSpec) (cmdResult, error) {
		mount := argValue(spec.Args, "-v")
		seen = strings.TrimSuffix(mount, ":/workspace")
		src, err := os.ReadFile(filepath.Join(seen, "main.py"))
		if err != nil || string(src) != "print(1)" {
			t.Errorf("source not materialized: %v %q", err, src)
		}
		return cmdResult{Stdout: "1"}, nil
	}}
	exec, err := newDockerExecutor(testDockerConfig(t), runner)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := RunOnce(context.Background(), exec, "print(1)", "", mustProfile(t, "python"), Limits{TimeLimit: time.Second}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(seen); !os.IsNotExist(err) {
		t.Errorf("workspace %s still exists: %v", seen, err)
	}
}

func TestDockerContainerNamesAreUnique(t *testing.T) {
	runner := &fakeRunner{}
	exec, err := newDockerExecutor(testDockerConfig(t), runner)
	if err != nil {
		t.Fatal(err)
	}
	profile := mustProfile(t, "python")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RunOnce(context.Background(), exec, "x", "", profile, Limits{TimeLimit: time.Second})
		}()
	}
	wg.Wait()

	names := make(map[string]bool)
	for _, spec := range runner.started() {
		name := argValue(spec.Args, "--name")
		if names[name] {
			t.Fatalf("duplicate container name %s", name)
		}
		names[name] = true
	}
	if len(names) != 8 {
		t.Errorf("got %d containers, want 8", len(names))
	}
}

func TestNewDockerExecutorValidates(t *testing.T) {
	base := testDockerConfig(t)
	for name, mutate := range map[string]func(*DockerConfig){
		"no image":  func(c *DockerConfig) { c.Image = "" },
		"no memory": func(c *DockerConfig) { c.MemoryLimit = "" },
		"no cpus":   func(c *DockerConfig) { c.CPUs = 0 },
	} {
		cfg := base
		mutate(&cfg)
		if _, err := NewDockerExecutor(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestWholeSeconds(t *testing.T) {
	tests := map[time.Duration]int{
		0:                       1,
		500 * time.Millisecond:  1,
		time.Second:             1,
		1001 * time.Millisecond: 2,
		5 * time.Second:         5,
	}
	for in, want := range tests {
		if got := wholeSeconds(in); got != want {
			t.Errorf("wholeSeconds(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestWorkspaceRejectsPathNames(t *testing.T) {
	for _, name := range []string{"", "..", "../main.py", "a/b.py"} {
		if _, err := newWorkspace(t.TempDir(), name, "x"); err == nil {
			t.Errorf("newWorkspace(%q) should fail", name)
		}
	}
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 4}
	b.Write([]byte("ab"))
	b.Write([]byte("cdef"))
	b.Write([]byte("g"))
	if got := b.String(); got != "abcd\n[output truncated]" {
		t.Errorf("got %q", got)
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func shProfile() Profile {
	return Profile{Language: "sh", SourceFile: "main.sh", RunCommand: "sh main.sh"}
}

func TestLocalExecutorRuns(t *testing.T) {
	requireShell(t)
	local := NewLocalExecutor(t.TempDir())
	tests := []struct {
		name   string
		script string
		input  string
		status model.SubmissionStatus
		output string
	}{
		{"echo input", "read a b; echo $((a + b))", "5 3\n", model.StatusAccepted, "8\n"},
		{"non-zero exit", "echo boom >&2; exit 2", "", model.StatusRuntimeError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := RunOnce(context.Background(), local, tt.script, tt.input, shProfile(), Limits{TimeLimit: 2 * time.Second})
			if err != nil {
				t.Fatal(err)
			}
			if out.Status != tt.status {
				t.Fatalf("status = %s (%q)", out.Status, out.Message)
			}
			if out.Output != tt.output {
				t.Errorf("output = %q, want %q", out.Output, tt.output)
			}
		})
	}
}

func TestLocalExecutorTimeout(t *testing.T) {
	requireShell(t)
	if testing.Short() {
		t.Skip("slow")
	}
	dir := t.TempDir()
	local := NewLocalExecutor(dir)
	start := time.Now()
	out, err := RunOnce(context.Background(), local, "while :; do :; done", "", shProfile(), Limits{TimeLimit: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.StatusTimeLimitExceeded {
		t.Fatalf("status = %s", out.Status)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("took %v to kill the process", elapsed)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("workspace leaked: %v", entries)
	}
}

func TestLocalExecutorCompileError(t *testing.T) {
	requireShell(t)
	profile := Profile{Language: "sh", SourceFile: "main.sh", CompileCommand: "sh -n main.sh", RunCommand: "sh main.sh"}
	out, err := RunOnce(context.Background(), NewLocalExecutor(t.TempDir()), "if then fi (", "", profile, Limits{TimeLimit: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.StatusCompilationError || out.Message == "" {
		t.Errorf("got %+v", out)
	}
}
