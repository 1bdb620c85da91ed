package fakestore

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer caches one template set per page, each parsed on top of base.html.
type Renderer struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
	mu        sync.RWMutex
}

// NewRenderer parses base.html and every page template in fsys.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		funcMap: template.FuncMap{
			"markdown": renderMarkdown,
			"price":    formatPrice,
			"add":      func(a, b int) int { return a + b },
		},
	}
	if err := r.parseTemplates(fsys); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return r, nil
}

func (r *Renderer) parseTemplates(fsys fs.FS) error {
	base, err := fs.ReadFile(fsys, "templates/base.html")
	if err != nil {
		return fmt.Errorf("failed to read base template: %w", err)
	}
	pages, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return err
	}
	for _, p := range pages {
		name := path.Base(p)
		if name == "base.html" {
			continue
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := template.New("base").Funcs(r.funcMap).Parse(string(base))
		if err != nil {
			return fmt.Errorf("failed to parse base template for %s: %w", name, err)
		}
		if tmpl, err = tmpl.Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.mu.Lock()
		r.templates[name] = tmpl
		r.mu.Unlock()
	}
	if len(r.templates) == 0 {
		return fmt.Errorf("no page templates found")
	}
	return nil
}

// Render writes the named page with the given status.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) error {
	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		return fmt.Errorf("failed to execute template %q: %w", name, err)
	}
	return nil
}

// renderMarkdown converts a product description to sanitized HTML.
func renderMarkdown(content string) template.HTML {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)

	opts := html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank}
	renderer := html.NewRenderer(opts)

	unsafe := markdown.ToHTML([]byte(content), p, renderer)
	safe := bluemonday.UGCPolicy().SanitizeBytes(unsafe)
	return template.HTML(safe) //nolint:gosec // sanitized by bluemonday
}

func formatPrice(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
