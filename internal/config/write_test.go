package config

import (
	"os"
	"path/filepath"
	"testing"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestSetKeyInFile(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name    string
		initial string
		section string
		key     string
		value   string
		want    string
	}{
		{
			name:  "new file",
			key:   "log.level",
			value: "debug",
			want:  "log.level debug\n",
		},
		{
			name:    "update in place",
			initial: "# logging\nlog.level info\ntick.max 3\n",
			key:     "log.level",
			value:   "warn",
			want:    "# logging\nlog.level warn\ntick.max 3\n",
		},
		{
			name:    "append to globals",
			initial: "tick.max 3\n",
			key:     "log.file",
			value:   "/tmp/btrun.log",
			want:    "tick.max 3\nlog.file /tmp/btrun.log\n",
		},
		{
			name:    "global goes before first section",
			initial: "tick.max 3\n\n[run]\nlog.level debug\n",
			key:     "log.level",
			value:   "error",
			want:    "tick.max 3\nlog.level error\n\n[run]\nlog.level debug\n",
		},
		{
			name:    "global into file with only sections",
			initial: "[run]\nprint true\n",
			key:     "tick.max",
			value:   "9",
			want:    "tick.max 9\n[run]\nprint true\n",
		},
		{
			name:    "empty value writes bare key",
			initial: "log.file /tmp/x\n",
			key:     "log.file",
			want:    "log.file\n",
		},
		{
			name:    "update in section",
			initial: "print false\n[run]\nprint false\n[nodes]\nxml false\n",
			section: "run",
			key:     "print",
			value:   "true",
			want:    "print false\n[run]\nprint true\n[nodes]\nxml false\n",
		},
		{
			name:    "append to existing section",
			initial: "[run]\nprint true\n\n[nodes]\nxml false\n",
			section: "run",
			key:     "observe",
			value:   "true",
			want:    "[run]\nprint true\nobserve true\n\n[nodes]\nxml false\n",
		},
		{
			name:    "new section",
			initial: "log.level info\n",
			section: "nodes",
			key:     "xml",
			value:   "on",
			want:    "log.level info\n\n[nodes]\nxml on\n",
		},
		{
			name:    "commented key is not replaced",
			initial: "[run]\n# print true\n",
			section: "run",
			key:     "print",
			value:   "false",
			want:    "[run]\n# print true\nprint false\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "config")
			if tc.initial != "" {
				if err := os.WriteFile(path, []byte(tc.initial), 0644); err != nil {
					t.Fatal(err)
				}
			}
			if err := SetKeyInFile(path, tc.section, tc.key, tc.value); err != nil {
				t.Fatalf("SetKeyInFile: %v", err)
			}
			if got := readFile(t, path); got != tc.want {
				t.Errorf("got:\n%q\nwant:\n%q", got, tc.want)
			}
		})
	}
}

func TestSetKeyInFileCreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a", "b", "config")
	if err := SetKeyInFile(path, "", "tick.interval", "1s"); err != nil {
		t.Fatalf("SetKeyInFile: %v", err)
	}
	config, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := config.GetGlobalOption("tick.interval"); v != "1s" {
		t.Errorf("tick.interval = %q", v)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the config file, got %d entries", len(entries))
	}
}
