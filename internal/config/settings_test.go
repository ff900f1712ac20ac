package config

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestResolveSettings_Defaults(t *testing.T) {
	t.Setenv("BTRUN_LOG_LEVEL", "")
	t.Setenv("BTRUN_LOG_FILE", "")
	t.Setenv("BTRUN_METRICS_ADDR", "")

	got, err := DefaultSchema().ResolveSettings(NewConfig(), "run")
	if err != nil {
		t.Fatalf("ResolveSettings: %v", err)
	}
	// Env vars set to "" still override, as with Resolve.
	want := Settings{
		LogMaxSizeMB:     10,
		LogMaxFiles:      5,
		TickInterval:     10 * time.Millisecond,
		ScriptCacheSize:  256,
		MetricsNamespace: "btrun",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestResolveSettings_Precedence(t *testing.T) {
	t.Setenv("BTRUN_LOG_LEVEL", "error")

	c := NewConfig()
	c.SetGlobalOption("log.level", "debug")
	c.SetGlobalOption("tick.interval", "1s")
	c.SetGlobalOption("tree.search-paths", strings.Join([]string{"/a", "/b"}, string(filepath.ListSeparator)))
	c.SetCommandOption("run", "tick.interval", "5ms")
	c.SetCommandOption("run", "tick.max", "100")

	s := DefaultSchema()
	got, err := s.ResolveSettings(c, "run")
	if err != nil {
		t.Fatalf("ResolveSettings: %v", err)
	}
	if got.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want env value", got.LogLevel)
	}
	if got.TickInterval != 5*time.Millisecond {
		t.Errorf("TickInterval = %v, want [run] value", got.TickInterval)
	}
	if got.MaxTicks != 100 {
		t.Errorf("MaxTicks = %d", got.MaxTicks)
	}
	if !reflect.DeepEqual(got.SearchPaths, []string{"/a", "/b"}) {
		t.Errorf("SearchPaths = %v", got.SearchPaths)
	}

	other, err := s.ResolveSettings(c, "print")
	if err != nil {
		t.Fatalf("ResolveSettings: %v", err)
	}
	if other.TickInterval != time.Second {
		t.Errorf("[print] TickInterval = %v, want global value", other.TickInterval)
	}
}

func TestResolveSettings_Invalid(t *testing.T) {
	c := NewConfig()
	c.SetGlobalOption("tick.interval", "soon")
	c.SetGlobalOption("tick.max", "-1")
	c.SetGlobalOption("log.max-files", "lots")

	_, err := DefaultSchema().ResolveSettings(c, "run")
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"tick.interval", "tick.max", "log.max-files"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestResolveBool(t *testing.T) {
	t.Parallel()

	c := NewConfig()
	c.SetCommandOption("run", "print", "yes")
	c.SetCommandOption("run", "observe", "perhaps")

	s := DefaultSchema()
	if !s.ResolveBool(c, "run", "print") {
		t.Error("print: want true")
	}
	if s.ResolveBool(c, "run", "observe") {
		t.Error("observe: unparsable value must be false")
	}
	if s.ResolveBool(c, "nodes", "xml") {
		t.Error("xml: default must be false")
	}
}
