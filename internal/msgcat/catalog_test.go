package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s, err := c.Render("oracle.rejected", map[string]any{"Move": "e2e5"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(s, "e2e5") {
		t.Fatalf("rendered: %q", s)
	}

	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestRenderMissingDataErrors(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("status.checkmate", map[string]any{}); err == nil {
		t.Fatal("expected missingkey error")
	}
}

func TestRenderOrFallsBack(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.RenderOr("no.such.key", nil, "fallback"); got != "fallback" {
		t.Fatalf("RenderOr = %q", got)
	}

	var nilCat *Catalog
	if got := nilCat.RenderOr("oracle.no_move", nil, "fallback"); got != "fallback" {
		t.Fatalf("nil catalog RenderOr = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "10-custom.yaml"),
		[]byte("oracle:\n  no_move: \"nothing from the engine\"\n"), 0o644)
	if err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := c.Render("oracle.no_move", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if s != "nothing from the engine" {
		t.Fatalf("override not applied: %q", s)
	}
	// untouched keys survive overrides
	if _, err := c.Render("status.stalemate", nil); err != nil {
		t.Fatalf("default lost: %v", err)
	}
}

func TestDuplicateOverrideKeysRejected(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, name),
			[]byte("oracle:\n  no_move: \"dup\"\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatal("expected duplicate key error")
	}
}
