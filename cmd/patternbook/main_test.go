package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_RequiresInput(t *testing.T) {
	err := run([]string{"--output", t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "--input") {
		t.Fatalf("expected missing --input error, got %v", err)
	}
}

func TestRun_RequiresOutput(t *testing.T) {
	err := run([]string{"--input", t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "--output") {
		t.Fatalf("expected missing --output error, got %v", err)
	}
}

func TestRun_BuildsSite(t *testing.T) {
	input := t.TempDir()
	output := t.TempDir()

	source := "---\ntitle: Singleton Pattern\n---\n\n# Singleton Pattern\n\n## Intent\n\nOne instance only.\n"
	if err := os.WriteFile(filepath.Join(input, "singleton.md"), []byte(source), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if err := run([]string{"--input", input, "--output", output, "--log-level", "error"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(output, "singleton-pattern", "index.html")); err != nil {
		t.Fatalf("expected published page: %v", err)
	}
	if _, err := os.Stat(filepath.Join(output, "index.html")); err != nil {
		t.Fatalf("expected index page: %v", err)
	}
}

func TestRun_BrokenAnchorExitsNonZero(t *testing.T) {
	input := t.TempDir()
	output := t.TempDir()

	source := "---\ntitle: Visitor Pattern\n---\n\n# Visitor Pattern\n\n## Intent\n\n- [Ghost](#ghost)\n"
	if err := os.WriteFile(filepath.Join(input, "visitor.md"), []byte(source), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if err := run([]string{"--input", input, "--output", output, "--log-level", "error"}); err == nil {
		t.Fatal("expected a failing exit for the broken anchor")
	}
}
