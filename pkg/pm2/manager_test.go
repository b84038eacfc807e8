package pm2

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gopm2/gopm2/pkg/types"
)

// fakeDaemon installs a shell script standing in for pm2. Every invocation
// appends its argv to a log; jlist emits a single online process named
// "app" and logs emits two fixed lines.
func fakeDaemon(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	argvLog := filepath.Join(dir, "argv.log")

	jlist := fmt.Sprintf(`[{"name":"app","pid":123,"pm_id":0,"pm2_env":{"status":"online","pm_uptime":%d,"restart_time":2},"monit":{"cpu":1.5,"memory":1048576}}]`,
		time.Now().Add(-5*time.Second).UnixMilli())

	script := fmt.Sprintf(`#!/bin/sh
echo "$@" >> %q
case "$1" in
jlist)
	cat <<'EOF'
%s
EOF
	;;
logs)
	echo "log line one"
	echo "log line two"
	;;
esac
exit 0
`, argvLog, jlist)

	return managerForScript(t, dir, script), argvLog
}

func managerForScript(t *testing.T, dir, script string) *Manager {
	t.Helper()
	bin := filepath.Join(dir, "pm2")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake pm2: %v", err)
	}
	e, err := NewExecutor(bin, false)
	if err != nil {
		t.Fatalf("NewExecutor() error: %v", err)
	}
	return NewManagerWithExecutor(e, 10*time.Second, 10*time.Second)
}

func loggedCalls(t *testing.T, argvLog string) []string {
	t.Helper()
	data, err := os.ReadFile(argvLog)
	if err != nil {
		t.Fatalf("failed to read argv log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestList(t *testing.T) {
	mgr, _ := fakeDaemon(t)

	procs, err := mgr.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(procs) != 1 {
		t.Fatalf("expected 1 process, got %d", len(procs))
	}
	p := procs[0]
	if p.Name != "app" || p.PID != 123 || p.PMID != 0 {
		t.Errorf("unexpected process: %+v", p)
	}
	if !p.IsOnline() {
		t.Errorf("expected online process, got status %s", p.Status)
	}
	if p.UptimeSec < 4 || p.UptimeSec > 6 {
		t.Errorf("expected uptime ~5s, got %d", p.UptimeSec)
	}
}

func TestGetByEachIdentifier(t *testing.T) {
	mgr, _ := fakeDaemon(t)
	ctx := context.Background()

	for _, id := range []Ident{ByName("app"), ByPID(123), ByPMID(0)} {
		proc, err := mgr.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%+v) error: %v", id, err)
		}
		if proc.Name != "app" {
			t.Errorf("Get(%+v) resolved %s, want app", id, proc.Name)
		}
	}
}

func TestGetCombinedIdentifiersMatchAny(t *testing.T) {
	mgr, _ := fakeDaemon(t)

	// Name disagrees but the pid matches; one agreeing field suffices.
	proc, err := mgr.Get(context.Background(), Ident{Name: "other", PID: 123})
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if proc.Name != "app" {
		t.Errorf("resolved %s, want app", proc.Name)
	}
}

func TestGetZeroIdentifier(t *testing.T) {
	mgr, argvLog := fakeDaemon(t)

	_, err := mgr.Get(context.Background(), Ident{})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if _, statErr := os.Stat(argvLog); statErr == nil {
		t.Error("expected no pm2 invocation for zero identifier")
	}
}

func TestGetNotFound(t *testing.T) {
	mgr, _ := fakeDaemon(t)

	_, err := mgr.Get(context.Background(), ByName("ghost"))
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %T", err)
	}
	if nfErr.Identifier != "ghost" || nfErr.Kind != KindName {
		t.Errorf("expected identifier ghost/name, got %s/%s", nfErr.Identifier, nfErr.Kind)
	}

	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Error("expected NotFoundError to unwrap to ProcessError")
	}
}

func TestGetNotFoundKindPreference(t *testing.T) {
	mgr, _ := fakeDaemon(t)

	_, err := mgr.Get(context.Background(), ByPID(999))
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %T", err)
	}
	if nfErr.Identifier != "999" || nfErr.Kind != KindPID {
		t.Errorf("expected identifier 999/pid, got %s/%s", nfErr.Identifier, nfErr.Kind)
	}
}

func TestStartEmptyScript(t *testing.T) {
	mgr, argvLog := fakeDaemon(t)

	_, err := mgr.Start(context.Background(), "", StartOptions{})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if _, statErr := os.Stat(argvLog); statErr == nil {
		t.Error("expected no pm2 invocation for empty script")
	}
}

func TestStartDirectoryScript(t *testing.T) {
	mgr, _ := fakeDaemon(t)

	_, err := mgr.Start(context.Background(), t.TempDir(), StartOptions{})
	var pathErr *PathIsFolderError
	if !errors.As(err, &pathErr) {
		t.Fatalf("expected PathIsFolderError, got %T", err)
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Error("expected PathIsFolderError to unwrap to ValidationError")
	}
}

func TestStartArgv(t *testing.T) {
	mgr, argvLog := fakeDaemon(t)

	script := filepath.Join(t.TempDir(), "app.js")
	if err := os.WriteFile(script, []byte("// app"), 0o644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	proc, err := mgr.Start(context.Background(), script, StartOptions{
		Name:      "app",
		Instances: 2,
		Env:       map[string]string{"B": "2", "A": "1"},
		Args:      []string{"--port", "3000"},
	})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if proc.Name != "app" {
		t.Errorf("expected started process app, got %s", proc.Name)
	}

	calls := loggedCalls(t, argvLog)
	want := fmt.Sprintf("start %s --name app -i 2 --env A=1 --env B=2 -- --port 3000", script)
	if calls[0] != want {
		t.Errorf("start argv:\n got %s\nwant %s", calls[0], want)
	}
	if calls[1] != "jlist" {
		t.Errorf("expected follow-up jlist, got %s", calls[1])
	}
}

func TestStartUnnamedResolvesNewest(t *testing.T) {
	mgr, _ := fakeDaemon(t)

	script := filepath.Join(t.TempDir(), "app.js")
	if err := os.WriteFile(script, []byte("// app"), 0o644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	proc, err := mgr.Start(context.Background(), script, StartOptions{})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if proc.PMID != 0 {
		t.Errorf("expected highest pm_id 0, got %d", proc.PMID)
	}
}

func TestStartAlreadyLaunched(t *testing.T) {
	dir := t.TempDir()
	script := `#!/bin/sh
case "$1" in
start)
	echo "Script already launched, you can restart it" >&2
	exit 1
	;;
esac
exit 0
`
	mgr := managerForScript(t, dir, script)

	app := filepath.Join(dir, "app.js")
	if err := os.WriteFile(app, []byte("// app"), 0o644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	_, err := mgr.Start(context.Background(), app, StartOptions{Name: "app"})
	var existsErr *AlreadyExistsError
	if !errors.As(err, &existsErr) {
		t.Fatalf("expected AlreadyExistsError, got %T: %v", err, err)
	}
	if existsErr.Name != "app" {
		t.Errorf("expected name app, got %s", existsErr.Name)
	}

	// Without a name the failure stays a plain command error.
	_, err = mgr.Start(context.Background(), app, StartOptions{})
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Errorf("expected CommandError for unnamed start, got %T", err)
	}
}

func TestLifecycleTargetsPMID(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		op   string
		call func(m *Manager) error
	}{
		{"stop", func(m *Manager) error { _, err := m.Stop(ctx, ByName("app")); return err }},
		{"restart", func(m *Manager) error { _, err := m.Restart(ctx, ByName("app")); return err }},
		{"reload", func(m *Manager) error { _, err := m.Reload(ctx, ByName("app")); return err }},
	}
	for _, tc := range cases {
		t.Run(tc.op, func(t *testing.T) {
			mgr, argvLog := fakeDaemon(t)
			if err := tc.call(mgr); err != nil {
				t.Fatalf("%s error: %v", tc.op, err)
			}
			calls := loggedCalls(t, argvLog)
			if len(calls) != 3 {
				t.Fatalf("expected resolve, op, refetch; got %v", calls)
			}
			if calls[1] != tc.op+" 0" {
				t.Errorf("expected %q, got %q", tc.op+" 0", calls[1])
			}
		})
	}
}

func TestLifecycleNotFound(t *testing.T) {
	mgr, _ := fakeDaemon(t)

	_, err := mgr.Stop(context.Background(), ByName("ghost"))
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Errorf("expected NotFoundError before any mutation, got %T", err)
	}
}

func TestDelete(t *testing.T) {
	mgr, argvLog := fakeDaemon(t)

	if err := mgr.Delete(context.Background(), ByPMID(0)); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	calls := loggedCalls(t, argvLog)
	if calls[len(calls)-1] != "delete 0" {
		t.Errorf("expected delete 0, got %v", calls)
	}
}

func TestLogs(t *testing.T) {
	mgr, argvLog := fakeDaemon(t)

	out, err := mgr.Logs(context.Background(), ByPMID(0), 5)
	if err != nil {
		t.Fatalf("Logs() error: %v", err)
	}
	if !strings.Contains(out, "log line one") || !strings.Contains(out, "log line two") {
		t.Errorf("unexpected log output: %q", out)
	}
	calls := loggedCalls(t, argvLog)
	if calls[len(calls)-1] != "logs app --lines 5 --nostream" {
		t.Errorf("unexpected logs argv: %v", calls)
	}
}

func TestLogsDefaultLines(t *testing.T) {
	mgr, argvLog := fakeDaemon(t)

	if _, err := mgr.Logs(context.Background(), ByName("app"), 0); err != nil {
		t.Fatalf("Logs() error: %v", err)
	}
	calls := loggedCalls(t, argvLog)
	if calls[len(calls)-1] != "logs app --lines 100 --nostream" {
		t.Errorf("expected default of 100 lines, got %v", calls)
	}
}

func TestFlushLogs(t *testing.T) {
	ctx := context.Background()

	t.Run("by name skips resolution", func(t *testing.T) {
		mgr, argvLog := fakeDaemon(t)
		if err := mgr.FlushLogs(ctx, ByName("app")); err != nil {
			t.Fatalf("FlushLogs() error: %v", err)
		}
		calls := loggedCalls(t, argvLog)
		if len(calls) != 1 || calls[0] != "flush app" {
			t.Errorf("expected single flush app call, got %v", calls)
		}
	})

	t.Run("by pid resolves name first", func(t *testing.T) {
		mgr, argvLog := fakeDaemon(t)
		if err := mgr.FlushLogs(ctx, ByPID(123)); err != nil {
			t.Fatalf("FlushLogs() error: %v", err)
		}
		calls := loggedCalls(t, argvLog)
		if calls[len(calls)-1] != "flush app" {
			t.Errorf("expected flush app after resolution, got %v", calls)
		}
	})

	t.Run("zero identifier flushes everything", func(t *testing.T) {
		mgr, argvLog := fakeDaemon(t)
		if err := mgr.FlushLogs(ctx, Ident{}); err != nil {
			t.Fatalf("FlushLogs() error: %v", err)
		}
		calls := loggedCalls(t, argvLog)
		if len(calls) != 1 || calls[0] != "flush" {
			t.Errorf("expected bare flush, got %v", calls)
		}
	})
}

func TestDaemonOperations(t *testing.T) {
	mgr, argvLog := fakeDaemon(t)
	ctx := context.Background()

	if err := mgr.Save(ctx); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	procs, err := mgr.Resurrect(ctx)
	if err != nil {
		t.Fatalf("Resurrect() error: %v", err)
	}
	if len(procs) != 1 {
		t.Errorf("expected 1 resurrected process, got %d", len(procs))
	}
	if err := mgr.KillDaemon(ctx); err != nil {
		t.Fatalf("KillDaemon() error: %v", err)
	}

	calls := loggedCalls(t, argvLog)
	want := []string{"save", "resurrect", "jlist", "kill"}
	if len(calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], calls[i])
		}
	}
}

func TestIsRunning(t *testing.T) {
	mgr, _ := fakeDaemon(t)
	if !mgr.IsRunning(context.Background()) {
		t.Error("expected running daemon")
	}

	down := managerForScript(t, t.TempDir(), "#!/bin/sh\nexit 1\n")
	if down.IsRunning(context.Background()) {
		t.Error("expected down daemon")
	}
}

func TestValidateConfig(t *testing.T) {
	cfg := types.DefaultProcessConfig("web", "app.js")
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("ValidateConfig() error on valid config: %v", err)
	}

	bad := cfg
	bad.Name = ""
	if err := ValidateConfig(bad); err == nil {
		t.Error("expected error for missing name")
	}

	bad = cfg
	bad.Script = ""
	if err := ValidateConfig(bad); err == nil {
		t.Error("expected error for missing script")
	}

	bad = cfg
	bad.MaxRestarts = -1
	if err := ValidateConfig(bad); err == nil {
		t.Error("expected error for negative max_restarts")
	}
}
