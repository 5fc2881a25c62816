package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kballard/go-shellquote"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("build runner tests use sh")
	}
}

// shell returns a command line running script under sh -c.
func shell(script string) string {
	return shellquote.Join("sh", "-c", script)
}

func newTestRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	requireShell(t)
	if cfg.StagingDir == "" {
		cfg.StagingDir = t.TempDir()
	}
	if cfg.WaitDelay == 0 {
		cfg.WaitDelay = 200 * time.Millisecond
	}
	r, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r
}

func waitJob(t *testing.T, job *Job) (Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := job.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		t.Fatal("job did not finish in time")
	}
	return res, err
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Count(string(data), "\n")
}

func TestNewRunner_InvalidCommand(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty", Config{Command: ""}},
		{"whitespace", Config{Command: "   "}},
		{"unterminated quote", Config{Command: `sh -c "echo`}},
		{"bad install", Config{Command: "make", InstallCommand: `npm 'ci`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(tt.cfg)
			if !errors.Is(err, ErrInvalidCommand) {
				t.Errorf("NewRunner() error = %v, want ErrInvalidCommand", err)
			}
		})
	}
}

func TestRunner_Success(t *testing.T) {
	r := newTestRunner(t, Config{
		Command: shell(`echo building; printf '<h1>ok</h1>' > "$WEBDEV_OUT_DIR/index.html"`),
	})

	job := r.Trigger(t.TempDir())
	res, err := waitJob(t, job)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if res.State != Succeeded {
		t.Errorf("State = %v, want %v", res.State, Succeeded)
	}
	if res.JobID != job.ID() {
		t.Errorf("JobID = %v, want %v", res.JobID, job.ID())
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if filepath.Dir(res.StagingDir) != r.StagingDir() {
		t.Errorf("StagingDir = %v, want a child of %v", res.StagingDir, r.StagingDir())
	}
	data, err := os.ReadFile(filepath.Join(res.StagingDir, "index.html"))
	if err != nil {
		t.Fatalf("build output missing: %v", err)
	}
	if string(data) != "<h1>ok</h1>" {
		t.Errorf("index.html = %q", data)
	}
	if job.State() != Succeeded {
		t.Errorf("job.State() = %v, want %v", job.State(), Succeeded)
	}
	if _, ok := r.Active(job.Root()); ok {
		t.Error("finished job still registered")
	}
}

func TestRunner_OutputArg(t *testing.T) {
	r := newTestRunner(t, Config{
		Command:   shell(`[ "$0" = "--out-dir" ] && touch "$1/marker"`),
		OutputArg: "--out-dir",
	})

	res, err := waitJob(t, r.Trigger(t.TempDir()))
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(res.StagingDir, "marker")); err != nil {
		t.Errorf("marker not written through output arg: %v", err)
	}
}

func TestRunner_CoalescesConcurrentTriggers(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "count")
	r := newTestRunner(t, Config{
		Command: shell(`echo run >> "$COUNTER"; sleep 0.3`),
		Env:     []string{"COUNTER=" + counter},
	})
	root := t.TempDir()

	const callers = 25
	jobs := make([]*Job, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jobs[i] = r.Trigger(root)
		}(i)
	}
	wg.Wait()

	for i, job := range jobs {
		if job != jobs[0] {
			t.Fatalf("caller %d got job %s, want shared job %s", i, job.ID(), jobs[0].ID())
		}
	}

	results := make([]Result, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = jobs[i].Wait(context.Background())
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if res.State != Succeeded || res.StagingDir != results[0].StagingDir {
			t.Errorf("waiter %d saw %+v, want the shared success", i, res)
		}
	}
	if n := countLines(t, counter); n != 1 {
		t.Errorf("build command ran %d times, want 1", n)
	}

	// A trigger after completion starts a fresh job.
	next := r.Trigger(root)
	if next == jobs[0] {
		t.Error("Trigger() after completion returned the finished job")
	}
	if _, err := waitJob(t, next); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if n := countLines(t, counter); n != 2 {
		t.Errorf("build command ran %d times, want 2", n)
	}
}

func TestRunner_RootsAreIndependent(t *testing.T) {
	r := newTestRunner(t, Config{Command: shell(`sleep 0.2`)})

	a := r.Trigger(t.TempDir())
	b := r.Trigger(t.TempDir())
	if a == b {
		t.Fatal("different roots shared a job")
	}

	// Relative and absolute spellings of one root coalesce.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	c := r.Trigger(".")
	d := r.Trigger(wd)
	if c != d {
		t.Error("equivalent root paths did not coalesce")
	}

	for _, job := range []*Job{a, b, c} {
		if _, err := waitJob(t, job); err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	}
}

func TestRunner_Failure(t *testing.T) {
	r := newTestRunner(t, Config{
		Command:   shell(`for i in 1 2 3 4 5; do echo "line $i"; done; echo "boom" >&2; touch "$WEBDEV_OUT_DIR/partial"; exit 3`),
		TailLines: 3,
	})

	job := r.Trigger(t.TempDir())
	res, err := waitJob(t, job)

	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("Wait() error = %v, want ErrBuildFailed", err)
	}
	var failed *FailedError
	if !errors.As(err, &failed) {
		t.Fatalf("Wait() error = %T, want *FailedError", err)
	}
	if failed.ExitCode != 3 || res.ExitCode != 3 {
		t.Errorf("ExitCode = %d/%d, want 3", failed.ExitCode, res.ExitCode)
	}
	if failed.JobID != job.ID() {
		t.Errorf("JobID = %v, want %v", failed.JobID, job.ID())
	}
	if res.State != Failed {
		t.Errorf("State = %v, want %v", res.State, Failed)
	}
	if len(res.Tail) != 3 {
		t.Fatalf("Tail = %q, want 3 lines", res.Tail)
	}
	joined := strings.Join(res.Tail, "\n")
	if !strings.Contains(joined, "boom") || !strings.Contains(joined, "line 5") {
		t.Errorf("Tail = %q, want the last lines of output", res.Tail)
	}
	if strings.Contains(joined, "line 1") {
		t.Errorf("Tail = %q kept more than the configured lines", res.Tail)
	}
	if res.StagingDir != "" {
		t.Errorf("StagingDir = %q, want empty after failure", res.StagingDir)
	}

	entries, err := os.ReadDir(r.StagingDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging parent has %d entries, want failed staging removed", len(entries))
	}
}

func TestRunner_SpawnFailure(t *testing.T) {
	r := newTestRunner(t, Config{Command: "/nonexistent/webdev-test-binary"})

	res, err := waitJob(t, r.Trigger(t.TempDir()))
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("Wait() error = %v, want ErrBuildFailed", err)
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
}

func TestRunner_Timeout(t *testing.T) {
	r := newTestRunner(t, Config{
		Command: shell(`sleep 5`),
		Timeout: 100 * time.Millisecond,
	})

	start := time.Now()
	_, err := waitJob(t, r.Trigger(t.TempDir()))
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("Wait() error = %v, want ErrBuildFailed", err)
	}
	var failed *FailedError
	if !errors.As(err, &failed) || !strings.Contains(failed.Err.Error(), "timed out") {
		t.Errorf("error = %v, want a timeout cause", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timed out job took %v", elapsed)
	}
}

func TestJob_WaiterCancellationDoesNotAffectJob(t *testing.T) {
	r := newTestRunner(t, Config{
		Command: shell(`sleep 0.3; touch "$WEBDEV_OUT_DIR/done"`),
	})
	job := r.Trigger(t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := job.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait(cancelled) error = %v, want context.Canceled", err)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if _, err := job.Wait(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait(short) error = %v, want context.DeadlineExceeded", err)
	}

	res, err := waitJob(t, job)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(res.StagingDir, "done")); err != nil {
		t.Errorf("job did not run to completion: %v", err)
	}
}

func TestRunner_Shutdown(t *testing.T) {
	requireShell(t)
	r, err := NewRunner(Config{
		Command:    shell(`sleep 10`),
		StagingDir: t.TempDir(),
		WaitDelay:  100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	job := r.Trigger(t.TempDir())
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	select {
	case <-job.Done():
	default:
		t.Fatal("job still running after Shutdown")
	}
	if job.State() != Failed {
		t.Errorf("State = %v, want %v", job.State(), Failed)
	}

	_, err = r.Trigger(t.TempDir()).Wait(context.Background())
	if !errors.Is(err, ErrRunnerClosed) {
		t.Errorf("Trigger after Shutdown error = %v, want ErrRunnerClosed", err)
	}
}

func TestRunner_InstallRunsOnce(t *testing.T) {
	dir := t.TempDir()
	installs := filepath.Join(dir, "installs")
	r := newTestRunner(t, Config{
		Command:        shell(`test -f "$MARKER"`),
		InstallCommand: shell(`echo install >> "$INSTALLS"; sleep 0.1; touch "$MARKER"`),
		Env:            []string{"INSTALLS=" + installs, "MARKER=" + filepath.Join(dir, "node_modules")},
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Install(context.Background()); err != nil {
				t.Errorf("Install() error = %v", err)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		if _, err := waitJob(t, r.Trigger(t.TempDir())); err != nil {
			t.Fatalf("build %d error = %v", i, err)
		}
	}

	if n := countLines(t, installs); n != 1 {
		t.Errorf("install ran %d times, want 1", n)
	}
}

func TestRunner_InstallFailureFailsBuild(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "builds")
	r := newTestRunner(t, Config{
		Command:        shell(`echo build >> "$COUNTER"`),
		InstallCommand: shell(`echo "no lockfile" >&2; exit 1`),
		Env:            []string{"COUNTER=" + counter},
	})

	_, err := waitJob(t, r.Trigger(t.TempDir()))
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("Wait() error = %v, want ErrBuildFailed", err)
	}
	if n := countLines(t, counter); n != 0 {
		t.Errorf("build ran %d times after failed install, want 0", n)
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) JobStarted(job *Job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "started:"+job.ID())
}

func (o *recordingObserver) JobFinished(job *Job, res Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "finished:"+job.ID()+":"+res.State.String())
}

func TestRunner_Observers(t *testing.T) {
	obs := &recordingObserver{}
	r := newTestRunner(t, Config{Command: shell(`true`)})
	r.AddObserver(obs)

	job := r.Trigger(t.TempDir())
	if _, err := waitJob(t, job); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	want := []string{"started:" + job.ID(), "finished:" + job.ID() + ":succeeded"}
	if len(obs.events) != len(want) {
		t.Fatalf("events = %v, want %v", obs.events, want)
	}
	for i := range want {
		if obs.events[i] != want[i] {
			t.Errorf("events[%d] = %v, want %v", i, obs.events[i], want[i])
		}
	}
}

func TestRunner_ConsoleOutput(t *testing.T) {
	var console strings.Builder
	var mu sync.Mutex
	r := newTestRunner(t, Config{
		Command: shell(`echo hello; printf 'no newline'`),
		Console: writerFunc(func(p []byte) (int, error) {
			mu.Lock()
			defer mu.Unlock()
			return console.Write(p)
		}),
	})

	if _, err := waitJob(t, r.Trigger(t.TempDir())); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	out := console.String()
	if !strings.Contains(out, "webdev build:") {
		t.Errorf("console output %q missing prefix", out)
	}
	if !strings.Contains(out, "hello\n") || !strings.Contains(out, "no newline\n") {
		t.Errorf("console output %q missing lines", out)
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestSweepStaging(t *testing.T) {
	r := newTestRunner(t, Config{Command: shell(`true`)})

	old := filepath.Join(r.StagingDir(), "webdev-build-old")
	fresh := filepath.Join(r.StagingDir(), "webdev-build-fresh")
	other := filepath.Join(r.StagingDir(), "unrelated")
	for _, dir := range []string{old, fresh, other} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	for _, dir := range []string{old, other} {
		if err := os.Chtimes(dir, past, past); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := r.SweepStaging(time.Hour)
	if err != nil {
		t.Fatalf("SweepStaging() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale staging directory was kept")
	}
	for _, dir := range []string{fresh, other} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("%s removed: %v", filepath.Base(dir), err)
		}
	}
}
