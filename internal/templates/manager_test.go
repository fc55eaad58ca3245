package templates

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"parkadmin/internal/domain"
)

func TestEmbeddedPagesParse(t *testing.T) {
	m, err := NewManager(FS(), false)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	var buf bytes.Buffer
	data := map[string]any{
		"Title": "Not found",
		"Year":  2026,
		"Data":  map[string]any{"Status": 404, "Message": "No such ticket"},
	}
	if err := m.Render(&buf, "pages/error.html", data); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"<title>Not found | Parking Admin</title>", "No such ticket", "404"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderUnknownPage(t *testing.T) {
	m, err := NewManager(FS(), false)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Render(&bytes.Buffer{}, "pages/nope.html", nil); err == nil {
		t.Fatal("expected an error for an unknown page")
	}
}

func TestNewManagerRequiresLayout(t *testing.T) {
	fsys := fstest.MapFS{
		"pages/a.html": {Data: []byte(`{{define "content"}}a{{end}}`)},
	}
	if _, err := NewManager(fsys, false); err == nil {
		t.Fatal("expected an error without a layout")
	}
}

func TestDebugModeRereadsPages(t *testing.T) {
	fsys := fstest.MapFS{
		"layouts/base.html": {Data: []byte(`{{define "base"}}[{{template "content" .}}]{{end}}`)},
		"pages/a.html":      {Data: []byte(`{{define "content"}}one{{end}}`)},
	}
	m, err := NewManager(fsys, true)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	var buf bytes.Buffer
	if err := m.Render(&buf, "pages/a.html", nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.String() != "[one]" {
		t.Fatalf("got %q", buf.String())
	}

	fsys["pages/a.html"] = &fstest.MapFile{Data: []byte(`{{define "content"}}two{{end}}`)}
	buf.Reset()
	if err := m.Render(&buf, "pages/a.html", nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.String() != "[two]" {
		t.Fatalf("got %q after edit", buf.String())
	}
}

func TestFormatMoney(t *testing.T) {
	fine := 12.5
	tests := []struct {
		in   any
		want string
	}{
		{0.0, "$0.00"},
		{1234567.891, "$1,234,567.89"},
		{-950.0, "-$950.00"},
		{&fine, "$12.50"},
		{(*float64)(nil), "$0.00"},
		{42, "$42.00"},
	}
	for _, tt := range tests {
		if got := formatMoney(tt.in); got != tt.want {
			t.Errorf("formatMoney(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDateAcceptsBackendTimes(t *testing.T) {
	at := time.Date(2026, 10, 19, 14, 5, 0, 0, time.UTC)
	wrapped := domain.Time{Time: at}

	if got := formatDate(at); got != "2026-10-19" {
		t.Errorf("formatDate(time) = %q", got)
	}
	if got := formatDateTime(wrapped); got != "2026-10-19 14:05" {
		t.Errorf("formatDateTime(domain.Time) = %q", got)
	}
	if got := formatDateTime(&wrapped); got != "2026-10-19 14:05" {
		t.Errorf("formatDateTime(*domain.Time) = %q", got)
	}
	if got := formatDateTime((*domain.Time)(nil)); got != "N/A" {
		t.Errorf("formatDateTime(nil) = %q", got)
	}
	if got := formatDate(domain.Time{}); got != "-" {
		t.Errorf("formatDate(zero) = %q", got)
	}
}

func TestStatusBadge(t *testing.T) {
	if got := statusBadge("paid"); got != "primary" {
		t.Errorf("statusBadge(paid) = %q", got)
	}
	if got := statusBadge("INVALID"); got != "error" {
		t.Errorf("statusBadge(INVALID) = %q", got)
	}
	if got := statusBadge("SOMETHING"); got != "secondary" {
		t.Errorf("statusBadge(unknown) = %q", got)
	}
}
