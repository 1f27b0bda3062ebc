package config

import (
	"os"
	"path/filepath"
	"testing"
)

// isolate points the home directory lookup at an empty directory so a
// developer's own configuration cannot leak into the tests.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Default()
	if cfg != want {
		t.Fatalf("unexpected config\n got: %#v\nwant: %#v", cfg, want)
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	isolate(t)

	dir := t.TempDir()
	data := []byte("format: \"%Y-%m-%d_%H%M\"\nextensions: mov\nfix_mtime: true\n")
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Format != "%Y-%m-%d_%H%M" || cfg.Extensions != "mov" || !cfg.FixModTime {
		t.Fatalf("unexpected config: %#v", cfg)
	}
	// Unset fields keep their defaults.
	if cfg.Mode != Default().Mode {
		t.Fatalf("expected default mode, got %q", cfg.Mode)
	}
}

func TestLoad_HomeFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	data := []byte("extensions: mov|avi\n")
	if err := os.WriteFile(filepath.Join(home, FileName), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Extensions != "mov|avi" {
		t.Fatalf("expected the home configuration, got %#v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)

	dir := t.TempDir()
	data := []byte("mode: system\n")
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("MOVRENAME_MODE", "advanced")
	t.Setenv("MOVRENAME_FORMAT", "%Y%m%d")
	t.Setenv("MOVRENAME_FIX_MTIME", "true")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mode != "advanced" || cfg.Format != "%Y%m%d" || !cfg.FixModTime {
		t.Fatalf("unexpected config: %#v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{name: "unknown mode", data: "mode: fast\n"},
		{name: "broken extension filter", data: "extensions: \"mov|(\"\n"},
		{name: "broken format", data: "format: \"%Q\"\n"},
		{name: "malformed yaml", data: "format: [\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)

			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tc.data), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}

			if _, err := Load(dir); err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}
