package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
rate_limit:
  limit: 50
  window: 30m
provider:
  name: openai
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c := validateCmd()
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetArgs([]string{path})
	if err := c.Execute(); err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Config is valid") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "50 per 30m") {
		t.Errorf("quota line missing: %q", out)
	}
}

func TestValidateCommandRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("rate_limit:\n  window: fortnight\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c := validateCmd()
	c.SetOut(new(bytes.Buffer))
	c.SetErr(new(bytes.Buffer))
	c.SetArgs([]string{path})
	if err := c.Execute(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestModesCommand(t *testing.T) {
	c := modesCmd()
	var buf bytes.Buffer
	c.SetOut(&buf)
	if err := c.RunE(c, nil); err != nil {
		t.Fatalf("modes returned error: %v", err)
	}

	out := strings.TrimSpace(buf.String())
	lines := strings.Split(out, "\n")
	if len(lines) != 6 {
		t.Fatalf("got %d modes, want 6:\n%s", len(lines), out)
	}
	if !strings.Contains(out, "B2B_GENERATOR") || !strings.Contains(out, "max_tokens=2048") {
		t.Errorf("B2B_GENERATOR defaults missing:\n%s", out)
	}
}
