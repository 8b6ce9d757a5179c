package appsettings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testSettings struct {
	Bar struct {
		Background string `json:"background"`
		Height     int    `json:"height"`
	} `json:"bar"`
	Align string `json:"align"`
}

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path, err := NewManager("traybar").Path()
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if !filepath.IsAbs(path) || !strings.HasSuffix(path, filepath.Join("traybar", "settings.json")) {
		t.Errorf("Path() = %q", path)
	}

	override := filepath.Join(t.TempDir(), "custom.json")
	if got, _ := NewFileManager(override).Path(); got != override {
		t.Errorf("Path() with override = %q, want %q", got, override)
	}
}

func TestSaveAndLoad(t *testing.T) {
	m := NewFileManager(filepath.Join(t.TempDir(), "nested", "settings.json"))

	var in testSettings
	in.Bar.Background = "#1d2021"
	in.Bar.Height = 28
	in.Align = "right"
	if err := m.Save(&in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var out testSettings
	found, err := m.Load(&out)
	if err != nil || !found {
		t.Fatalf("Load() = %v, %v", found, err)
	}
	if out != in {
		t.Errorf("Load() = %+v, want %+v", out, in)
	}

	in.Bar.Height = 30
	if err := m.Save(&in); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	if _, err := m.Load(&out); err != nil || out.Bar.Height != 30 {
		t.Errorf("after overwrite Height = %d, err = %v", out.Bar.Height, err)
	}

	entries, err := os.ReadDir(filepath.Dir(mustPath(t, m)))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("settings directory holds %d files, want 1 (temp files left behind?)", len(entries))
	}
	if info, err := os.Stat(mustPath(t, m)); err == nil && info.Mode().Perm()&0o077 != 0 {
		t.Errorf("settings file mode = %v, want no group/other access", info.Mode().Perm())
	}
}

func TestLoadNotFound(t *testing.T) {
	for name, content := range map[string]*string{"missing": nil, "empty": ptr("  \n")} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.json")
			if content != nil {
				if err := os.WriteFile(path, []byte(*content), 0o600); err != nil {
					t.Fatal(err)
				}
			}
			var s testSettings
			s.Align = "left"
			found, err := NewFileManager(path).Load(&s)
			if err != nil || found {
				t.Errorf("Load() = %v, %v, want false, nil", found, err)
			}
			if s.Align != "left" {
				t.Errorf("Load() modified settings: %+v", s)
			}
		})
	}
}

func TestLoadCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"bar": {"height": "tall"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	var s testSettings
	if _, err := NewFileManager(path).Load(&s); err == nil || !strings.Contains(err.Error(), "parse settings") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func mustPath(t *testing.T, m *Manager) string {
	t.Helper()
	p, err := m.Path()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func ptr[T any](v T) *T { return &v }
