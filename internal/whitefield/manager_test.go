package whitefield

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"hnp-sim/internal/logging"
)

type call struct {
	dir  string
	name string
	args []string
}

// fakeRunner answers commands by executable name.
type fakeRunner struct {
	calls   []call
	start   string
	status  []string // consumed one per status query; last one repeats
	startFn func() error
	stopErr error
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	f.calls = append(f.calls, call{dir: dir, name: name, args: args})
	switch name {
	case "./invoke_whitefield.sh":
		if f.startFn != nil {
			if err := f.startFn(); err != nil {
				return "", err
			}
		}
		return f.start, nil
	case "./whitefield_status.sh":
		if len(f.status) == 0 {
			return "", nil
		}
		out := f.status[0]
		if len(f.status) > 1 {
			f.status = f.status[1:]
		}
		return out, nil
	case "./scripts/wfshell":
		return "stopping", f.stopErr
	}
	return "", errors.New("unexpected command " + name)
}

func (f *fakeRunner) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func testEnv(t *testing.T) Environment {
	t.Helper()
	root := t.TempDir()
	env := DefaultEnvironment()
	env.Root = root
	env.ConfigPrefix = "../cascoda/"
	env.OutputRoot = filepath.Join(t.TempDir(), "simulation_outputs")
	return env
}

func newTestManager(env Environment, r *fakeRunner) *Manager {
	m := NewManager(env, r, time.Millisecond)
	m.wait = func(context.Context, time.Duration) {}
	m.now = func() time.Time { return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC) }
	return m
}

func testCtx() context.Context {
	return logging.NewContext(context.Background(), logging.Discard())
}

func TestLaunch(t *testing.T) {
	env := testEnv(t)
	r := &fakeRunner{start: "Whitefield Started OK\n"}
	m := newTestManager(env, r)
	if err := m.Launch(testCtx(), "../config/wf_ot_n3_t1_s-99_x1_p83.cfg"); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	c := r.calls[0]
	if c.dir != env.Root {
		t.Fatalf("launched from %s, want %s", c.dir, env.Root)
	}
	if len(c.args) != 1 || c.args[0] != "../cascoda/../config/wf_ot_n3_t1_s-99_x1_p83.cfg" {
		t.Fatalf("unexpected args %v", c.args)
	}
}

func TestLaunchMissingMarker(t *testing.T) {
	r := &fakeRunner{start: "config file not found"}
	m := newTestManager(testEnv(t), r)
	err := m.Launch(testCtx(), "x.cfg")
	if !errors.Is(err, ErrLaunch) {
		t.Fatalf("expected ErrLaunch, got %v", err)
	}
	var le *LaunchError
	if !errors.As(err, &le) || le.Output != "config file not found" {
		t.Fatalf("expected LaunchError with output, got %#v", err)
	}
}

func TestAwaitCompletionStops(t *testing.T) {
	r := &fakeRunner{status: []string{"running\n", "running\n", "Whitefield stopped\n"}}
	m := newTestManager(testEnv(t), r)
	var attempts []int
	m.OnPoll(func(a int) { attempts = append(attempts, a) })
	got, err := m.AwaitCompletion(testCtx(), time.Millisecond)
	if err != nil {
		t.Fatalf("AwaitCompletion: %v", err)
	}
	if got != CompletionStopped {
		t.Fatalf("completion = %v", got)
	}
	if n := r.count("./whitefield_status.sh"); n != 3 {
		t.Fatalf("status queried %d times, want 3", n)
	}
	if len(attempts) != 3 || attempts[2] != 2 {
		t.Fatalf("unexpected progress attempts %v", attempts)
	}
	if r.calls[0].dir != filepath.Join(m.env.Root, "scripts") {
		t.Fatalf("status ran from %s", r.calls[0].dir)
	}
}

func TestAwaitCompletionCancelled(t *testing.T) {
	r := &fakeRunner{status: []string{"running"}}
	m := newTestManager(testEnv(t), r)
	ctx, cancel := context.WithCancel(testCtx())
	defer cancel()
	m.OnPoll(func(a int) {
		if a == 1 {
			cancel()
		}
	})
	got, err := m.AwaitCompletion(ctx, time.Millisecond)
	if err != nil {
		t.Fatalf("AwaitCompletion: %v", err)
	}
	if got != CompletionCancelled {
		t.Fatalf("completion = %v, want cancelled", got)
	}
	// one poll before the signal plus at most one after it
	if n := r.count("./whitefield_status.sh"); n != 2 {
		t.Fatalf("status queried %d times, want 2", n)
	}
}

func TestAwaitCompletionAlreadyCancelled(t *testing.T) {
	r := &fakeRunner{}
	m := newTestManager(testEnv(t), r)
	ctx, cancel := context.WithCancel(testCtx())
	cancel()
	got, _ := m.AwaitCompletion(ctx, time.Millisecond)
	if got != CompletionCancelled || len(r.calls) != 0 {
		t.Fatalf("expected immediate cancellation, got %v after %d calls", got, len(r.calls))
	}
}

func makeOutputs(t *testing.T, env Environment, kinds ...string) {
	t.Helper()
	for _, k := range kinds {
		dir := filepath.Join(env.Root, k)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, k+".out"), []byte(k), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func TestArchiveMovesFolders(t *testing.T) {
	env := testEnv(t)
	makeOutputs(t, env, KindLog, KindPcap)
	m := newTestManager(env, &fakeRunner{})

	arts, err := m.Archive(testCtx(), "../config/wf_ot_n3_t1_s-99_x1_p83.cfg")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	wantLog := filepath.Join(env.OutputRoot, "wf_ot_n3_t1_s-99_x1_p83", "log_2026_10_15-09_30_00")
	if arts.Path(KindLog) != wantLog {
		t.Fatalf("log path = %s, want %s", arts.Path(KindLog), wantLog)
	}
	for _, a := range arts {
		if _, err := os.Stat(filepath.Join(a.Path, a.Kind+".out")); err != nil {
			t.Fatalf("archived %s missing: %v", a.Kind, err)
		}
		if _, err := os.Stat(filepath.Join(env.Root, a.Kind)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("source %s still exists after move", a.Kind)
		}
	}
	abs := arts.AbsPaths()
	if len(abs) != 2 || !filepath.IsAbs(abs[0]) || !strings.HasSuffix(abs[1], "pcap_2026_10_15-09_30_00") {
		t.Fatalf("unexpected abs paths %v", abs)
	}
}

func TestArchiveMissingSource(t *testing.T) {
	env := testEnv(t)
	makeOutputs(t, env, KindLog)
	m := newTestManager(env, &fakeRunner{})

	_, err := m.Archive(testCtx(), "wf.cfg")
	if !errors.Is(err, ErrArchive) {
		t.Fatalf("expected ErrArchive, got %v", err)
	}
	var ae *ArchiveError
	if !errors.As(err, &ae) || ae.Kind != KindPcap {
		t.Fatalf("expected pcap ArchiveError, got %#v", err)
	}
	if _, err := os.Stat(filepath.Join(env.Root, KindLog)); err != nil {
		t.Fatalf("log folder should not move when pcap is missing: %v", err)
	}
}

func TestArchiveCopiesAcrossFilesystems(t *testing.T) {
	env := testEnv(t)
	makeOutputs(t, env, KindLog, KindPcap)
	m := newTestManager(env, &fakeRunner{})
	m.rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}

	arts, err := m.Archive(testCtx(), "wf_ot_n3_t1_s-99_x1_p83.cfg")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	for _, a := range arts {
		data, err := os.ReadFile(filepath.Join(a.Path, a.Kind+".out"))
		if err != nil {
			t.Fatalf("archived %s missing: %v", a.Kind, err)
		}
		if string(data) != a.Kind {
			t.Fatalf("archived %s content = %q", a.Kind, data)
		}
		if _, err := os.Stat(filepath.Join(env.Root, a.Kind)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("source %s still exists after cross-device move", a.Kind)
		}
	}
}

func TestArchiveRestoresEarlierFoldersOnFailure(t *testing.T) {
	env := testEnv(t)
	makeOutputs(t, env, KindLog, KindPcap)
	m := newTestManager(env, &fakeRunner{})
	boom := errors.New("permission denied")
	pcapSrc := filepath.Join(env.Root, KindPcap)
	m.rename = func(oldpath, newpath string) error {
		if oldpath == pcapSrc {
			return boom
		}
		return os.Rename(oldpath, newpath)
	}

	_, err := m.Archive(testCtx(), "wf_ot_n3_t1_s-99_x1_p83.cfg")
	if !errors.Is(err, ErrArchive) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrArchive wrapping %v, got %v", boom, err)
	}
	if _, err := os.Stat(filepath.Join(env.Root, KindLog, KindLog+".out")); err != nil {
		t.Fatalf("log folder not restored: %v", err)
	}
	dests := m.Destinations("wf_ot_n3_t1_s-99_x1_p83.cfg")
	if _, err := os.Stat(dests.Path(KindLog)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("log archive left behind after rollback")
	}
}

func TestRunStopsOnceAndArchives(t *testing.T) {
	env := testEnv(t)
	r := &fakeRunner{start: "Started OK", status: []string{"Whitefield stopped"}}
	r.startFn = func() error {
		makeOutputs(t, env, KindLog, KindPcap)
		return nil
	}
	m := newTestManager(env, r)
	arts, err := m.Run(testCtx(), "wf_ot_n3_t1_s-99_x1_p83.cfg")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(arts) != 2 {
		t.Fatalf("expected 2 artifacts, got %v", arts)
	}
	if n := r.count("./scripts/wfshell"); n != 1 {
		t.Fatalf("stop issued %d times, want 1", n)
	}
}

func TestRunContinuesAfterLaunchFailure(t *testing.T) {
	env := testEnv(t)
	makeOutputs(t, env, KindLog, KindPcap)
	r := &fakeRunner{start: "ERROR", status: []string{"Whitefield stopped"}}
	m := newTestManager(env, r)
	if _, err := m.Run(testCtx(), "wf.cfg"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.count("./whitefield_status.sh") != 1 || r.count("./scripts/wfshell") != 1 {
		t.Fatalf("trial should proceed to polling and stop: %+v", r.calls)
	}
}

func TestRunCancelledStillStops(t *testing.T) {
	env := testEnv(t)
	makeOutputs(t, env, KindLog, KindPcap)
	r := &fakeRunner{start: "Started OK", status: []string{"running"}}
	m := newTestManager(env, r)
	ctx, cancel := context.WithCancel(testCtx())
	m.OnPoll(func(int) { cancel() })
	if _, err := m.Run(ctx, "wf.cfg"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := r.count("./scripts/wfshell"); n != 1 {
		t.Fatalf("stop issued %d times, want 1", n)
	}
}
