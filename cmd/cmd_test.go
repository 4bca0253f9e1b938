package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reloquent/schemacanvas/internal/config"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "***"},
		{"postgres://u:p@h/db", "po***************db"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SCHEMACANVAS_TEST_ENV=loaded\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("SCHEMACANVAS_TEST_ENV") })

	if err := loadEnv(path); err != nil {
		t.Fatalf("loadEnv error: %v", err)
	}
	if got := os.Getenv("SCHEMACANVAS_TEST_ENV"); got != "loaded" {
		t.Errorf("env = %q, want loaded", got)
	}
	if err := loadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file: error = %v, want nil", err)
	}
}

func TestSessionOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Canvas.MaxZoom = 3
	cfg.Canvas.AllowSelfReference = true
	cfg.Canvas.HistoryLimit = 50

	opts, err := sessionOptions(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Bounds.MaxZoom != 3 || !opts.Policy.AllowSelfReference || opts.HistoryLimit != 50 {
		t.Errorf("opts = %+v", opts)
	}
	if len(opts.Templates) == 0 {
		t.Error("default templates missing")
	}
}

func TestLoadTemplates(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "templates.yaml")
	data := `
- name: invoices
  description: Billing
  fields:
    - name: id
      type: bigint
      primary_key: true
    - name: total
      type: decimal
`
	if err := os.WriteFile(good, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Canvas.Templates = good
	opts, err := sessionOptions(cfg)
	if err != nil {
		t.Fatalf("sessionOptions error: %v", err)
	}
	if len(opts.Templates) != 1 || opts.Templates[0].Name != "invoices" || len(opts.Templates[0].Fields) != 2 {
		t.Errorf("templates = %+v", opts.Templates)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("- name: 9lives\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTemplates(bad); err == nil {
		t.Error("expected error for invalid template name")
	}
	if _, err := loadTemplates(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
