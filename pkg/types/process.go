package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Status represents the current state of a PM2-managed process.
type Status string

const (
	StatusOnline    Status = "online"
	StatusStopping  Status = "stopping"
	StatusStopped   Status = "stopped"
	StatusLaunching Status = "launching"
	StatusErrored   Status = "errored"
	// StatusOneLaunch marks single-run tasks that completed their one launch.
	StatusOneLaunch Status = "one-launch-status"
)

// ParseStatus maps a PM2 status string to a Status. Unknown or empty
// values degrade to StatusStopped rather than failing.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusOnline, StatusStopping, StatusStopped, StatusLaunching, StatusErrored, StatusOneLaunch:
		return Status(s)
	default:
		return StatusStopped
	}
}

// ExecMode is the PM2 execution mode for a process.
type ExecMode string

const (
	ModeFork    ExecMode = "fork"
	ModeCluster ExecMode = "cluster"
)

// ParseExecMode maps a PM2 exec_mode string to an ExecMode. PM2 reports
// modes as "fork_mode"/"cluster_mode" in some versions; both spellings are
// accepted. Unknown values degrade to ModeFork.
func ParseExecMode(s string) ExecMode {
	switch s {
	case "cluster", "cluster_mode":
		return ModeCluster
	default:
		return ModeFork
	}
}

// Metrics holds live resource usage for a process as reported by PM2's
// monit block. All values default to zero when PM2 omits them.
type Metrics struct {
	CPU       float64 `json:"cpu"`       // percent
	Memory    int64   `json:"memory"`    // bytes
	HeapUsed  int64   `json:"heapUsed"`  // bytes, Node.js processes only
	HeapTotal int64   `json:"heapTotal"` // bytes
	External  int64   `json:"external"`  // bytes
	RSS       int64   `json:"rss"`       // bytes
}

// MemoryMB returns total memory usage in megabytes.
func (m Metrics) MemoryMB() float64 {
	return float64(m.Memory) / (1024 * 1024)
}

// HeapUsedMB returns used heap memory in megabytes.
func (m Metrics) HeapUsedMB() float64 {
	return float64(m.HeapUsed) / (1024 * 1024)
}

// MaxInstances is the Instances value for PM2's "max" (one instance per CPU).
const MaxInstances Instances = -1

// Instances is a PM2 instance count. PM2 serializes it as either an integer
// or the literal string "max"; MaxInstances represents the latter.
type Instances int

func (i *Instances) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "max" {
			*i = MaxInstances
			return nil
		}
		return fmt.Errorf("invalid instances value %q", s)
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*i = Instances(n)
	return nil
}

func (i Instances) MarshalJSON() ([]byte, error) {
	if i == MaxInstances {
		return json.Marshal("max")
	}
	return json.Marshal(int(i))
}

func (i Instances) String() string {
	if i == MaxInstances {
		return "max"
	}
	return fmt.Sprintf("%d", int(i))
}

// Watch is PM2's file-watch setting: either a plain boolean or a list of
// glob patterns to watch.
type Watch struct {
	Enabled bool
	Paths   []string
}

func (w *Watch) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`[`)) {
		var paths []string
		if err := json.Unmarshal(b, &paths); err != nil {
			return err
		}
		w.Enabled = len(paths) > 0
		w.Paths = paths
		return nil
	}
	var enabled bool
	if err := json.Unmarshal(b, &enabled); err != nil {
		return err
	}
	w.Enabled = enabled
	w.Paths = nil
	return nil
}

func (w Watch) MarshalJSON() ([]byte, error) {
	if w.Paths != nil {
		return json.Marshal(w.Paths)
	}
	return json.Marshal(w.Enabled)
}

// Process is a point-in-time snapshot of one PM2-managed process. It is
// constructed fresh on every listing call and never mutated; any state
// change requires re-fetching from the daemon. Callers must not assume it
// stays accurate beyond the call that produced it.
type Process struct {
	Name      string `json:"name"`
	PID       int    `json:"pid,omitempty"` // OS pid, 0 unless running
	PMID      int    `json:"pmID"`          // daemon-assigned id, the handle for mutating ops
	Namespace string `json:"namespace"`

	Status   Status   `json:"status"`
	ExecMode ExecMode `json:"execMode"`

	CreatedAt *time.Time `json:"createdAt,omitempty"`
	// UptimeSec is seconds since the process came online, always 0 when
	// Status != online regardless of the stored launch timestamp.
	UptimeSec int64 `json:"uptimeSec"`

	Metrics Metrics `json:"metrics"`

	RestartCount int    `json:"restartCount"`
	AutoRestart  bool   `json:"autoRestart"`
	MaxRestarts  int    `json:"maxRestarts"`
	MinUptime    string `json:"minUptime"`

	User             string            `json:"user,omitempty"`
	WorkingDirectory string            `json:"cwd,omitempty"`
	ExecPath         string            `json:"execPath,omitempty"`
	Env              map[string]string `json:"env,omitempty"`

	OutLogPath    string `json:"outLogPath,omitempty"`
	ErrLogPath    string `json:"errLogPath,omitempty"`
	LogDateFormat string `json:"logDateFormat"`

	Instances        Instances `json:"instances"`
	Watch            Watch     `json:"watch"`
	SourceMapSupport bool      `json:"sourceMapSupport"`
	NodeArgs         []string  `json:"nodeArgs,omitempty"`
	Args             []string  `json:"args,omitempty"`

	Version     string `json:"version"`
	NodeVersion string `json:"nodeVersion,omitempty"`
}

// IsOnline reports whether the process is currently running.
func (p *Process) IsOnline() bool { return p.Status == StatusOnline }

// IsStopped reports whether the process is currently stopped.
func (p *Process) IsStopped() bool { return p.Status == StatusStopped }

// EnvVar returns the named environment variable from the process
// environment, or fallback if the variable is not set.
func (p *Process) EnvVar(key, fallback string) string {
	if v, ok := p.Env[key]; ok {
		return v
	}
	return fallback
}

// rawProcess mirrors one element of `pm2 jlist` output.
type rawProcess struct {
	Name  string    `json:"name"`
	PID   int       `json:"pid"`
	PMID  int       `json:"pm_id"`
	Env   rawPM2Env `json:"pm2_env"`
	Monit rawMonit  `json:"monit"`
}

// rawPM2Env mirrors the pm2_env block. Pointer fields carry PM2 defaults
// that differ from the Go zero value.
type rawPM2Env struct {
	Status           string                     `json:"status"`
	ExecMode         string                     `json:"exec_mode"`
	Namespace        string                     `json:"namespace"`
	PMUptime         int64                      `json:"pm_uptime"`  // epoch ms
	CreatedAt        int64                      `json:"created_at"` // epoch ms
	RestartTime      int                        `json:"restart_time"`
	AutoRestart      *bool                      `json:"autorestart"`
	MaxRestarts      *int                       `json:"max_restarts"`
	MinUptime        json.RawMessage            `json:"min_uptime"`
	Username         string                     `json:"username"`
	Cwd              string                     `json:"pm_cwd"`
	ExecPath         string                     `json:"pm_exec_path"`
	EnvVars          map[string]json.RawMessage `json:"env"`
	OutLogPath       string                     `json:"pm_out_log_path"`
	ErrLogPath       string                     `json:"pm_err_log_path"`
	LogDateFormat    string                     `json:"log_date_format"`
	Instances        *Instances                 `json:"instances"`
	Watch            Watch                      `json:"watch"`
	SourceMapSupport bool                       `json:"source_map_support"`
	NodeArgs         []string                   `json:"node_args"`
	Args             []string                   `json:"args"`
	Version          string                     `json:"version"`
	NodeVersion      string                     `json:"node_version"`
}

type rawMonit struct {
	CPU       float64 `json:"cpu"`
	Memory    int64   `json:"memory"`
	HeapUsed  int64   `json:"heap_used"`
	HeapTotal int64   `json:"heap_total"`
	External  int64   `json:"external"`
	RSS       int64   `json:"rss"`
}

// ParseProcessList parses the JSON array emitted by `pm2 jlist` into
// snapshots. An element without a name is rejected.
func ParseProcessList(data []byte) ([]Process, error) {
	return parseProcessList(data, time.Now())
}

func parseProcessList(data []byte, now time.Time) ([]Process, error) {
	var raws []rawProcess
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parse process list: %w", err)
	}
	procs := make([]Process, 0, len(raws))
	for i := range raws {
		p, err := processFromRaw(&raws[i], now)
		if err != nil {
			return nil, err
		}
		procs = append(procs, *p)
	}
	return procs, nil
}

// ParseProcess parses a single jlist element.
func ParseProcess(data []byte) (*Process, error) {
	var raw rawProcess
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse process: %w", err)
	}
	return processFromRaw(&raw, time.Now())
}

// MissingNameError reports a jlist element with no name field. The pm2
// package converts it into a ValidationError; declared here so types does
// not depend on the pm2 package.
type MissingNameError struct{}

func (MissingNameError) Error() string {
	return "process data missing required name field"
}

func processFromRaw(raw *rawProcess, now time.Time) (*Process, error) {
	if raw.Name == "" {
		return nil, MissingNameError{}
	}
	env := raw.Env

	p := &Process{
		Name:      raw.Name,
		PID:       raw.PID,
		PMID:      raw.PMID,
		Namespace: stringOr(env.Namespace, "default"),

		Status:   ParseStatus(env.Status),
		ExecMode: ParseExecMode(env.ExecMode),

		Metrics: Metrics{
			CPU:       raw.Monit.CPU,
			Memory:    raw.Monit.Memory,
			HeapUsed:  raw.Monit.HeapUsed,
			HeapTotal: raw.Monit.HeapTotal,
			External:  raw.Monit.External,
			RSS:       raw.Monit.RSS,
		},

		RestartCount: env.RestartTime,
		AutoRestart:  boolOr(env.AutoRestart, true),
		MaxRestarts:  intOr(env.MaxRestarts, 15),
		MinUptime:    stringOr(flexString(env.MinUptime), "1000"),

		User:             env.Username,
		WorkingDirectory: env.Cwd,
		ExecPath:         env.ExecPath,

		OutLogPath:    env.OutLogPath,
		ErrLogPath:    env.ErrLogPath,
		LogDateFormat: stringOr(env.LogDateFormat, "YYYY-MM-DD HH:mm:ss"),

		Watch:            env.Watch,
		SourceMapSupport: env.SourceMapSupport,
		NodeArgs:         env.NodeArgs,
		Args:             env.Args,

		Version:     stringOr(env.Version, "N/A"),
		NodeVersion: env.NodeVersion,
	}

	p.Instances = 1
	if env.Instances != nil {
		p.Instances = *env.Instances
	}

	if env.CreatedAt > 0 {
		t := time.UnixMilli(env.CreatedAt)
		p.CreatedAt = &t
	}

	// Uptime only counts while online.
	if p.Status == StatusOnline && env.PMUptime > 0 {
		if up := now.Sub(time.UnixMilli(env.PMUptime)); up > 0 {
			p.UptimeSec = int64(up.Seconds())
		}
	}

	// PM2 dumps arbitrary values into pm2_env.env; keep string-typed
	// scalars and drop nested structures.
	if len(env.EnvVars) > 0 {
		p.Env = make(map[string]string, len(env.EnvVars))
		for k, v := range env.EnvVars {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				p.Env[k] = s
				continue
			}
			if len(v) > 0 && v[0] != '{' && v[0] != '[' {
				p.Env[k] = string(v)
			}
		}
	}

	return p, nil
}

// flexString renders a JSON scalar that may arrive as either a string or a
// number (PM2 emits min_uptime both ways).
func flexString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func stringOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

func intOr(n *int, fallback int) int {
	if n == nil {
		return fallback
	}
	return *n
}
