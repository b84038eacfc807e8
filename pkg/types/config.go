package types

// ProcessConfig describes how PM2 should launch a process. It mirrors the
// options of a PM2 ecosystem app entry. A config carries no runtime state;
// build one, hand it to ToMap, and discard it.
type ProcessConfig struct {
	Name   string
	Script string
	Args   []string

	Instances Instances
	ExecMode  ExecMode

	// Resource limits
	MaxMemoryRestart string // restart when memory exceeds, e.g. "150M"
	MaxRestarts      int
	MinUptime        string

	// Logging
	LogFile       string
	OutFile       string
	ErrorFile     string
	LogDateFormat string
	MergeLogs     bool

	// Auto restart
	AutoRestart bool
	Watch       Watch
	IgnoreWatch []string

	// Advanced options
	SourceMapSupport        bool
	DisableSourceMapSupport bool
	InstanceVar             string
	PMX                     bool
	Automation              bool
	TreeKill                bool
	Port                    int

	// Environment variable sets
	Env            map[string]string
	EnvProduction  map[string]string
	EnvDevelopment map[string]string
}

// DefaultProcessConfig returns a config with PM2's defaults. Every call
// returns fresh maps and slices so configs never share state.
func DefaultProcessConfig(name, script string) ProcessConfig {
	return ProcessConfig{
		Name:          name,
		Script:        script,
		Args:          []string{},
		Instances:     1,
		ExecMode:      ModeFork,
		MaxRestarts:   15,
		MinUptime:     "10s",
		LogDateFormat: "YYYY-MM-DD HH:mm:ss",
		MergeLogs:     true,
		AutoRestart:   true,
		IgnoreWatch:   []string{"node_modules", ".git"},
		InstanceVar:   "NODE_APP_INSTANCE",
		PMX:           true,
		Automation:    true,
		TreeKill:      true,
		Env:           map[string]string{},
	}
}

// ToMap converts the config into PM2's flat launch-descriptor shape
// (ecosystem app entry). Absent optional fields are omitted entirely
// rather than emitted as null.
func (c ProcessConfig) ToMap() map[string]any {
	m := map[string]any{
		"name":                       c.Name,
		"script":                     c.Script,
		"args":                       c.Args,
		"instances":                  instancesValue(c.Instances),
		"exec_mode":                  string(c.ExecMode),
		"max_restarts":               c.MaxRestarts,
		"min_uptime":                 c.MinUptime,
		"autorestart":                c.AutoRestart,
		"watch":                      watchValue(c.Watch),
		"ignore_watch":               c.IgnoreWatch,
		"source_map_support":         c.SourceMapSupport,
		"disable_source_map_support": c.DisableSourceMapSupport,
		"instance_var":               c.InstanceVar,
		"pmx":                        c.PMX,
		"automation":                 c.Automation,
		"treekill":                   c.TreeKill,
		"log_date_format":            c.LogDateFormat,
		"merge_logs":                 c.MergeLogs,
		"env":                        c.Env,
	}

	if c.MaxMemoryRestart != "" {
		m["max_memory_restart"] = c.MaxMemoryRestart
	}
	if c.LogFile != "" {
		m["log_file"] = c.LogFile
	}
	if c.OutFile != "" {
		m["out_file"] = c.OutFile
	}
	if c.ErrorFile != "" {
		m["error_file"] = c.ErrorFile
	}
	if c.Port != 0 {
		m["port"] = c.Port
	}
	if c.EnvProduction != nil {
		m["env_production"] = c.EnvProduction
	}
	if c.EnvDevelopment != nil {
		m["env_development"] = c.EnvDevelopment
	}

	return m
}

func instancesValue(i Instances) any {
	if i == MaxInstances {
		return "max"
	}
	return int(i)
}

func watchValue(w Watch) any {
	if w.Paths != nil {
		return w.Paths
	}
	return w.Enabled
}
