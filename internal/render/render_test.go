package render

import (
	"strings"
	"testing"
)

func TestPlainPassesThrough(t *testing.T) {
	md := "# title\n\n- a\n"
	if got := Plain().Render(md); got != md {
		t.Fatalf("Render = %q, want %q", got, md)
	}
	var nilRenderer *Renderer
	if got := nilRenderer.Render(md); got != md {
		t.Fatalf("nil Render = %q", got)
	}
}

func TestGlamourRender(t *testing.T) {
	r, err := New(60, "notty")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Width() != 60 {
		t.Fatalf("Width = %d", r.Width())
	}
	out := r.Render("## Registry comments\n\n**ann** (2024-05-17 09:30:00): hello\n")
	if !strings.Contains(out, "Registry comments") || !strings.Contains(out, "hello") {
		t.Fatalf("Render = %q", out)
	}
}

func TestUnknownStyle(t *testing.T) {
	if _, err := New(60, "/does/not/exist.json"); err == nil {
		t.Fatal("expected error for missing style file")
	}
}
