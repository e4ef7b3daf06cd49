package exec_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"go.trai.ch/fab/internal/adapters/fileset"
	"go.trai.ch/fab/internal/adapters/fs"
	"go.trai.ch/fab/internal/adapters/telemetry"
	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/engine/exec"
)

func newEngine() *exec.Engine {
	return exec.NewEngine(telemetry.NewNoOpTracer(), fs.NewFingerprinter(), fileset.NewExpander())
}

func testOptions(root string, threads int) domain.Options {
	return domain.Options{
		ProjectRoot:  root,
		Threads:      threads,
		ConsoleLevel: domain.LevelError,
		FailOnError:  true,
	}
}

func mustFilePattern(t *testing.T, glob string) domain.TargetPattern {
	t.Helper()
	p, err := domain.FilePattern(glob)
	if err != nil {
		t.Fatalf("failed to compile pattern %q: %v", glob, err)
	}
	return p
}

// recordingLogger captures every record for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Logf(level domain.Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level.String()+": "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestRun_DiamondBuildsEachTargetOnce(t *testing.T) {
	root := t.TempDir()
	reg := domain.NewRegistry()

	var allRuns, fileRuns atomic.Int32
	reg.Add(domain.Rule{
		Pattern: domain.PhonyPattern("all"),
		Action: func(ctx context.Context, rc domain.RunContext, _ domain.Target) error {
			allRuns.Add(1)
			return rc.Need(ctx, "a.o", "b.o")
		},
	})
	reg.Add(domain.Rule{
		Pattern: mustFilePattern(t, "*.o"),
		Action: func(_ context.Context, _ domain.RunContext, target domain.Target) error {
			fileRuns.Add(1)
			return os.WriteFile(target.Name(), []byte(filepath.Base(target.Name())), 0o644)
		},
	})

	err := newEngine().Run(context.Background(), testOptions(root, 2), reg, []string{"all"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"a.o", "b.o"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if allRuns.Load() != 1 || fileRuns.Load() != 2 {
		t.Errorf("expected 1 phony + 2 file executions, got %d + %d", allRuns.Load(), fileRuns.Load())
	}
}

func TestRun_ChainWithOneThreadDoesNotDeadlock(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		root := t.TempDir()
		reg := domain.NewRegistry()

		var mu sync.Mutex
		var order []string
		var current, peak atomic.Int32

		step := func(name, dep string) domain.Action {
			return func(ctx context.Context, rc domain.RunContext, _ domain.Target) error {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				defer current.Add(-1)

				if dep != "" {
					// Suspending on Need releases the permit; the counter
					// must drop while the dependency builds.
					current.Add(-1)
					err := rc.Need(ctx, dep)
					current.Add(1)
					if err != nil {
						return err
					}
				}
				time.Sleep(time.Millisecond)
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return nil
			}
		}

		reg.Add(domain.Rule{Pattern: domain.PhonyPattern("a"), Action: step("a", "b")})
		reg.Add(domain.Rule{Pattern: domain.PhonyPattern("b"), Action: step("b", "c")})
		reg.Add(domain.Rule{Pattern: domain.PhonyPattern("c"), Action: step("c", "")})

		err := newEngine().Run(context.Background(), testOptions(root, 1), reg, []string{"a"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := strings.Join(order, ","); got != "c,b,a" {
			t.Errorf("expected completion order c,b,a, got %s", got)
		}
		if peak.Load() > 1 {
			t.Errorf("observed %d rule bodies running at once with threads=1", peak.Load())
		}
	})
}

func TestRun_PeakConcurrencyRespectsBudget(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		const threads = 2
		root := t.TempDir()
		reg := domain.NewRegistry()

		var current, peak atomic.Int32
		worker := func(_ context.Context, _ domain.RunContext, _ domain.Target) error {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
			return nil
		}

		deps := []string{"w1", "w2", "w3", "w4", "w5"}
		for _, name := range deps {
			reg.Add(domain.Rule{Pattern: domain.PhonyPattern(name), Action: worker})
		}
		reg.Add(domain.Rule{
			Pattern: domain.PhonyPattern("all"),
			Action: func(ctx context.Context, rc domain.RunContext, _ domain.Target) error {
				return rc.Need(ctx, deps...)
			},
		})

		err := newEngine().Run(context.Background(), testOptions(root, threads), reg, []string{"all"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > threads {
			t.Errorf("observed %d concurrent rule bodies, budget is %d", peak.Load(), threads)
		}
	})
}

func TestRun_ActionErrorSurfacesFatally(t *testing.T) {
	root := t.TempDir()
	logPath := filepath.Join(root, "build.log")
	reg := domain.NewRegistry()
	reg.Add(domain.Rule{
		Pattern: domain.PhonyPattern("x"),
		Action: func(_ context.Context, _ domain.RunContext, _ domain.Target) error {
			return errors.New("boom")
		},
	})

	opts := testOptions(root, 2)
	opts.FileLogPath = logPath
	opts.FileLevel = domain.LevelVerbose

	err := newEngine().Run(context.Background(), opts, reg, []string{"x"})
	if err == nil {
		t.Fatal("expected a fatal error with FailOnError set")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected leaf message to contain boom, got %v", err)
	}

	logData, readErr := os.ReadFile(logPath)
	if readErr != nil {
		t.Fatalf("expected log file: %v", readErr)
	}
	if !strings.Contains(string(logData), "boom") {
		t.Error("expected the full error trace in the file log")
	}
	if !strings.Contains(string(logData), "Build failed after running for") {
		t.Error("expected the failure summary line in the file log")
	}
}

func TestRun_SiblingFailureDoesNotCancelSibling(t *testing.T) {
	root := t.TempDir()
	reg := domain.NewRegistry()

	var aRuns, bRuns, allRuns atomic.Int32
	reg.Add(domain.Rule{
		Pattern: domain.PhonyPattern("a"),
		Action: func(_ context.Context, _ domain.RunContext, _ domain.Target) error {
			aRuns.Add(1)
			return nil
		},
	})
	reg.Add(domain.Rule{
		Pattern: domain.PhonyPattern("b"),
		Action: func(_ context.Context, _ domain.RunContext, _ domain.Target) error {
			bRuns.Add(1)
			return errors.New("nope")
		},
	})
	reg.Add(domain.Rule{
		Pattern: domain.PhonyPattern("all"),
		Action: func(ctx context.Context, rc domain.RunContext, _ domain.Target) error {
			allRuns.Add(1)
			return rc.Need(ctx, "a", "b")
		},
	})

	err := newEngine().Run(context.Background(), testOptions(root, 2), reg, []string{"all"})
	if err == nil {
		t.Fatal("expected failure to propagate from b")
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Errorf("expected leaf error list to include nope, got %v", err)
	}
	if aRuns.Load() != 1 || bRuns.Load() != 1 || allRuns.Load() != 1 {
		t.Errorf("expected exactly one execution each, got a=%d b=%d all=%d",
			aRuns.Load(), bRuns.Load(), allRuns.Load())
	}
}

func TestRun_MissingRuleOnExistingFileIsSource(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "input.txt"), []byte("data"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	log := &recordingLogger{}
	opts := testOptions(root, 1)
	opts.CustomLogger = log

	err := newEngine().Run(context.Background(), opts, domain.NewRegistry(), []string{"input.txt"})
	if err != nil {
		t.Fatalf("expected pre-existing input to succeed without a rule: %v", err)
	}
	if !log.contains("using source file") {
		t.Error("expected the source-file path to be logged")
	}
}

func TestRun_MissingRuleOnMissingFileFails(t *testing.T) {
	root := t.TempDir()

	err := newEngine().Run(context.Background(), testOptions(root, 1), domain.NewRegistry(), []string{"missing.txt"})
	if err == nil {
		t.Fatal("expected NoRule failure")
	}
	if !strings.Contains(err.Error(), "no rule") {
		t.Errorf("expected a no-rule error, got %v", err)
	}
}

func TestRun_PhonyWinsOverFileRule(t *testing.T) {
	root := t.TempDir()
	reg := domain.NewRegistry()

	var ran string
	reg.Add(domain.Rule{
		Pattern: mustFilePattern(t, "x"),
		Action: func(_ context.Context, _ domain.RunContext, _ domain.Target) error {
			ran = "file"
			return nil
		},
	})
	reg.Add(domain.Rule{
		Pattern: domain.PhonyPattern("x"),
		Action: func(_ context.Context, _ domain.RunContext, _ domain.Target) error {
			ran = "phony"
			return nil
		},
	})

	err := newEngine().Run(context.Background(), testOptions(root, 1), reg, []string{"x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran != "phony" {
		t.Errorf("expected the phony rule to win for the bare name, got %q", ran)
	}
}

// TestRun_SelfCycleBlocksUntilCancelled documents the known behavior for
// cyclic graphs: the run wedges on its own future and only the context can
// end it. Cycle detection is out of scope.
func TestRun_SelfCycleBlocksUntilCancelled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		root := t.TempDir()
		reg := domain.NewRegistry()
		reg.Add(domain.Rule{
			Pattern: domain.PhonyPattern("out"),
			Action: func(ctx context.Context, rc domain.RunContext, _ domain.Target) error {
				return rc.Need(ctx, "out")
			},
		})

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := newEngine().Run(ctx, testOptions(root, 2), reg, []string{"out"})
		if err == nil {
			t.Fatal("expected the cyclic build to end in an error")
		}
		if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
			t.Errorf("expected the run to block until the deadline, returned after %s", elapsed)
		}
	})
}

func TestRun_NeedEmptyListIsNoOp(t *testing.T) {
	root := t.TempDir()
	reg := domain.NewRegistry()
	reg.Add(domain.Rule{
		Pattern: domain.PhonyPattern("all"),
		Action: func(ctx context.Context, rc domain.RunContext, _ domain.Target) error {
			return rc.Need(ctx)
		},
	})

	err := newEngine().Run(context.Background(), testOptions(root, 1), reg, []string{"all"})
	if err != nil {
		t.Fatalf("need with no targets must complete immediately: %v", err)
	}
}

func TestRun_WantOverrideWinsOverScriptWants(t *testing.T) {
	root := t.TempDir()
	reg := domain.NewRegistry()

	var ran []string
	var mu sync.Mutex
	mark := func(name string) domain.Action {
		return func(_ context.Context, _ domain.RunContext, _ domain.Target) error {
			mu.Lock()
			defer mu.Unlock()
			ran = append(ran, name)
			return nil
		}
	}
	reg.Add(domain.Rule{Pattern: domain.PhonyPattern("a"), Action: mark("a")})
	reg.Add(domain.Rule{Pattern: domain.PhonyPattern("b"), Action: mark("b")})

	opts := testOptions(root, 1)
	opts.Want = []string{"b"}

	err := newEngine().Run(context.Background(), opts, reg, []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ran) != 1 || ran[0] != "b" {
		t.Errorf("expected only the overriding want to run, got %v", ran)
	}
}

func TestRun_NoWantsIsConfigError(t *testing.T) {
	err := newEngine().Run(context.Background(), testOptions(t.TempDir(), 1), domain.NewRegistry(), nil)
	if err == nil {
		t.Fatal("expected an error when nothing is requested")
	}
	if !strings.Contains(err.Error(), "no targets requested") {
		t.Errorf("expected a no-wants error, got %v", err)
	}
}

func TestRun_InvalidThreadsIsConfigError(t *testing.T) {
	opts := testOptions(t.TempDir(), 1)
	opts.Threads = -3

	err := newEngine().Run(context.Background(), opts, domain.NewRegistry(), []string{"x"})
	if err == nil {
		t.Fatal("expected an error for negative threads")
	}
	if !strings.Contains(err.Error(), "invalid options") {
		t.Errorf("expected a config error, got %v", err)
	}
}

func TestRun_SuccessiveRunsShareNothing(t *testing.T) {
	root := t.TempDir()
	reg := domain.NewRegistry()

	var runs atomic.Int32
	reg.Add(domain.Rule{
		Pattern: domain.PhonyPattern("all"),
		Action: func(_ context.Context, _ domain.RunContext, _ domain.Target) error {
			runs.Add(1)
			return nil
		},
	})

	engine := newEngine()
	for i := 0; i < 2; i++ {
		if err := engine.Run(context.Background(), testOptions(root, 1), reg, []string{"all"}); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
	}
	if runs.Load() != 2 {
		t.Errorf("expected a fresh build per run, got %d executions", runs.Load())
	}
}

func TestRun_NeedFileset(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.md"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(name), 0o644); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	reg := domain.NewRegistry()
	var needed atomic.Int32
	reg.Add(domain.Rule{
		Pattern: domain.PhonyPattern("all"),
		Action: func(ctx context.Context, rc domain.RunContext, _ domain.Target) error {
			needed.Add(1)
			return rc.NeedFileset(ctx, domain.NewFileset("*.txt"))
		},
	})

	log := &recordingLogger{}
	opts := testOptions(root, 2)
	opts.CustomLogger = log

	if err := newEngine().Run(context.Background(), opts, reg, []string{"all"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !log.contains("a.txt") || !log.contains("b.txt") {
		t.Error("expected both txt files to be needed as sources")
	}
	if log.contains("c.md") {
		t.Error("expected the md file to be excluded from the fileset")
	}
}

func TestRun_WhenNeededRunsBody(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "dep.txt"), []byte("dep"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	reg := domain.NewRegistry()
	var bodyRan atomic.Bool
	reg.Add(domain.Rule{
		Pattern: domain.PhonyPattern("all"),
		Action: func(ctx context.Context, rc domain.RunContext, _ domain.Target) error {
			return rc.WhenNeeded(ctx, "dep.txt", func(_ context.Context) error {
				bodyRan.Store(true)
				return nil
			})
		},
	})

	if err := newEngine().Run(context.Background(), testOptions(root, 1), reg, []string{"all"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bodyRan.Load() {
		t.Error("expected the body to run while the rebuild status is always Valid")
	}
}

func TestRun_PrimaryErrorFollowsSubmissionOrder(t *testing.T) {
	root := t.TempDir()
	reg := domain.NewRegistry()

	fail := func(msg string) domain.Action {
		return func(_ context.Context, _ domain.RunContext, _ domain.Target) error {
			return errors.New(msg)
		}
	}
	reg.Add(domain.Rule{Pattern: domain.PhonyPattern("first"), Action: fail("first failed")})
	reg.Add(domain.Rule{Pattern: domain.PhonyPattern("second"), Action: fail("second failed")})
	reg.Add(domain.Rule{
		Pattern: domain.PhonyPattern("all"),
		Action: func(ctx context.Context, rc domain.RunContext, _ domain.Target) error {
			return rc.Need(ctx, "first", "second")
		},
	})

	err := newEngine().Run(context.Background(), testOptions(root, 2), reg, []string{"all"})
	if err == nil {
		t.Fatal("expected failure")
	}

	leaves := domain.Flatten(err)
	var messages []string
	for _, leaf := range leaves {
		messages = append(messages, leaf.Error())
	}
	joined := strings.Join(messages, "|")
	if !strings.Contains(joined, "first failed") || !strings.Contains(joined, "second failed") {
		t.Fatalf("expected both leaf errors, got %v", messages)
	}
	if strings.Index(joined, "first failed") > strings.Index(joined, "second failed") {
		t.Errorf("expected the first needed target's error to lead, got %v", messages)
	}
}

func TestRun_SuccessLogsElapsed(t *testing.T) {
	root := t.TempDir()
	reg := domain.NewRegistry()
	reg.Add(domain.Rule{Pattern: domain.PhonyPattern("all"), Action: func(_ context.Context, _ domain.RunContext, _ domain.Target) error {
		return nil
	}})

	log := &recordingLogger{}
	opts := testOptions(root, 1)
	opts.CustomLogger = log

	if err := newEngine().Run(context.Background(), opts, reg, []string{"all"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !log.contains("Build completed in") {
		t.Error("expected the success summary line")
	}
}
