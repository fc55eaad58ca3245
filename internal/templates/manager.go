// Package templates provides a template manager over the dashboard's
// embedded page files, with per-request reload in debug mode
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"parkadmin/internal/domain"
)

//go:embed web
var embedded embed.FS

const layoutPath = "layouts/base.html"

// FS returns the embedded templates. Names passed to Render are relative
// to its root, e.g. "pages/tickets.html"
func FS() fs.FS {
	sub, err := fs.Sub(embedded, "web")
	if err != nil {
		panic(err)
	}
	return sub
}

// Manager handles template loading and caching
type Manager struct {
	fsys    fs.FS
	debug   bool
	cache   map[string]*template.Template
	mu      sync.RWMutex
	funcMap template.FuncMap
}

// NewManager creates a new template manager.
// If debug is true, templates are reloaded on every request
// If debug is false, templates are cached in memory
func NewManager(fsys fs.FS, debug bool) (*Manager, error) {
	if _, err := fs.Stat(fsys, layoutPath); err != nil {
		return nil, fmt.Errorf("template layout missing: %w", err)
	}

	m := &Manager{
		fsys:  fsys,
		debug: debug,
		cache: make(map[string]*template.Template),
		funcMap: template.FuncMap{
			"formatDate":     formatDate,
			"formatDateTime": formatDateTime,
			"formatMoney":    formatMoney,
			"add":            add,
			"sub":            sub,
			"statusBadge":    statusBadge,
			"deref":          deref,
			"join":           strings.Join,
			"lower":          strings.ToLower,
		},
	}

	// If not in debug mode, pre-load all templates
	if !debug {
		if err := m.loadTemplates(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// loadTemplates parses every page under pages/ with the layout
func (m *Manager) loadTemplates() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return fs.WalkDir(m.fsys, "pages", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(name) != ".html" {
			return nil
		}
		tmpl, err := m.parse(name)
		if err != nil {
			return err
		}
		m.cache[name] = tmpl
		return nil
	})
}

// parse combines the layout with one page
func (m *Manager) parse(name string) (*template.Template, error) {
	tmpl, err := template.New("base").Funcs(m.funcMap).ParseFS(m.fsys, layoutPath, name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// Render renders a template with the given data
func (m *Manager) Render(w io.Writer, name string, data any) error {
	if m.debug {
		tmpl, err := m.parse(name)
		if err != nil {
			return fmt.Errorf("failed to reload templates: %w", err)
		}
		m.mu.Lock()
		m.cache[name] = tmpl
		m.mu.Unlock()
	}

	m.mu.RLock()
	tmpl, ok := m.cache[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}

	return tmpl.ExecuteTemplate(w, "base", data)
}

// Template helper functions

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case domain.Time:
		return t.Time
	case *domain.Time:
		if t != nil {
			return t.Time
		}
	}
	return time.Time{}
}

func formatDate(v any) string {
	t := asTime(v)
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatDateTime(v any) string {
	t := asTime(v)
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("2006-01-02 15:04")
}

func formatMoney(v any) string {
	var amount float64
	switch a := v.(type) {
	case float64:
		amount = a
	case *float64:
		if a != nil {
			amount = *a
		}
	case int:
		amount = float64(a)
	}
	sign := ""
	if amount < 0 {
		sign, amount = "-", -amount
	}
	whole := fmt.Sprintf("%.2f", amount)
	intPart, frac := whole[:len(whole)-3], whole[len(whole)-3:]
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + "$" + b.String() + frac
}

func add(a, b int) int {
	return a + b
}

func sub(a, b int) int {
	return a - b
}

func deref(v any) any {
	switch p := v.(type) {
	case *string:
		if p == nil {
			return ""
		}
		return *p
	case *bool:
		return p != nil && *p
	case *float64:
		if p == nil {
			return 0.0
		}
		return *p
	}
	return v
}

func statusBadge(status string) string {
	badges := map[string]string{
		"PAID":      "primary",
		"VALID":     "success",
		"COMPLETE":  "success",
		"COMPLETED": "success",
		"APPROVED":  "success",
		"ACTIVE":    "success",
		"PENDING":   "warning",
		"INVALID":   "error",
		"CANCELLED": "error",
		"REJECTED":  "error",
		"EXPIRED":   "secondary",
	}
	if badge, ok := badges[strings.ToUpper(status)]; ok {
		return badge
	}
	return "secondary"
}
