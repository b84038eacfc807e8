package types

import "testing"

func TestDefaultProcessConfig(t *testing.T) {
	cfg := DefaultProcessConfig("web", "app.js")

	if cfg.Name != "web" || cfg.Script != "app.js" {
		t.Errorf("unexpected name/script: %s %s", cfg.Name, cfg.Script)
	}
	if cfg.Instances != 1 {
		t.Errorf("expected 1 instance, got %d", cfg.Instances)
	}
	if cfg.ExecMode != ModeFork {
		t.Errorf("expected fork mode, got %s", cfg.ExecMode)
	}
	if cfg.MaxRestarts != 15 {
		t.Errorf("expected max_restarts 15, got %d", cfg.MaxRestarts)
	}
	if !cfg.AutoRestart {
		t.Error("expected autorestart enabled")
	}
	if cfg.LogDateFormat != "YYYY-MM-DD HH:mm:ss" {
		t.Errorf("unexpected log date format: %s", cfg.LogDateFormat)
	}
}

func TestDefaultProcessConfigNoSharedState(t *testing.T) {
	a := DefaultProcessConfig("a", "a.js")
	b := DefaultProcessConfig("b", "b.js")

	a.Env["PORT"] = "3000"
	a.IgnoreWatch = append(a.IgnoreWatch, "tmp")
	a.Args = append(a.Args, "--verbose")

	if _, ok := b.Env["PORT"]; ok {
		t.Error("env map shared between configs")
	}
	if len(b.IgnoreWatch) != 2 {
		t.Errorf("ignore_watch shared between configs: %v", b.IgnoreWatch)
	}
	if len(b.Args) != 0 {
		t.Errorf("args shared between configs: %v", b.Args)
	}
}

func TestToMapOmitsEmptyOptionals(t *testing.T) {
	m := DefaultProcessConfig("web", "app.js").ToMap()

	for _, key := range []string{"max_memory_restart", "log_file", "out_file", "error_file", "port", "env_production", "env_development"} {
		if _, ok := m[key]; ok {
			t.Errorf("expected %s to be omitted when unset", key)
		}
	}
	if m["name"] != "web" || m["script"] != "app.js" {
		t.Errorf("unexpected name/script in map: %v %v", m["name"], m["script"])
	}
	if m["exec_mode"] != "fork" {
		t.Errorf("expected exec_mode fork, got %v", m["exec_mode"])
	}
}

func TestToMapIncludesSetOptionals(t *testing.T) {
	cfg := DefaultProcessConfig("web", "app.js")
	cfg.MaxMemoryRestart = "150M"
	cfg.OutFile = "/var/log/web.out"
	cfg.Port = 8080
	cfg.EnvProduction = map[string]string{"NODE_ENV": "production"}

	m := cfg.ToMap()
	if m["max_memory_restart"] != "150M" {
		t.Errorf("expected max_memory_restart 150M, got %v", m["max_memory_restart"])
	}
	if m["out_file"] != "/var/log/web.out" {
		t.Errorf("expected out_file, got %v", m["out_file"])
	}
	if m["port"] != 8080 {
		t.Errorf("expected port 8080, got %v", m["port"])
	}
	env, ok := m["env_production"].(map[string]string)
	if !ok || env["NODE_ENV"] != "production" {
		t.Errorf("unexpected env_production: %v", m["env_production"])
	}
}

func TestToMapInstancesAndWatch(t *testing.T) {
	cfg := DefaultProcessConfig("web", "app.js")
	cfg.Instances = MaxInstances
	cfg.Watch = Watch{Enabled: true, Paths: []string{"src"}}

	m := cfg.ToMap()
	if m["instances"] != "max" {
		t.Errorf("expected instances max, got %v", m["instances"])
	}
	paths, ok := m["watch"].([]string)
	if !ok || len(paths) != 1 || paths[0] != "src" {
		t.Errorf("unexpected watch value: %v", m["watch"])
	}

	cfg.Instances = 4
	cfg.Watch = Watch{Enabled: true}
	m = cfg.ToMap()
	if m["instances"] != 4 {
		t.Errorf("expected instances 4, got %v", m["instances"])
	}
	if m["watch"] != true {
		t.Errorf("expected watch true, got %v", m["watch"])
	}
}
