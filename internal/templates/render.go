// Package templates renders the HTML fragments patched into the settings
// panel. Fragments are compiled in; a directory on disk can replace them and
// be reloaded while the server runs.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"sync/atomic"
)

//go:embed fragments/*.html
var embedded embed.FS

var funcMap = template.FuncMap{
	"pct":  func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"tons": func(f float64) string { return fmt.Sprintf("%.1f t", f) },
}

// Renderer executes named fragments. Safe for concurrent use with Reload.
type Renderer struct {
	dir  string
	tmpl atomic.Pointer[template.Template]
}

// New loads every *.html file in dir.
func New(dir string) (*Renderer, error) {
	r := &Renderer{dir: dir}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewEmbedded uses the fragments built into the binary.
func NewEmbedded() *Renderer {
	sub, err := fs.Sub(embedded, "fragments")
	if err != nil {
		panic(err)
	}
	r := &Renderer{}
	r.tmpl.Store(template.Must(parse(sub)))
	return r
}

func parse(fsys fs.FS) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(fsys, "*.html")
}

// Dir is "" for embedded renderers.
func (r *Renderer) Dir() string { return r.dir }

func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Load().ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Reload reparses the directory. A parse error keeps the previous set.
func (r *Renderer) Reload() error {
	if r.dir == "" {
		return nil
	}
	t, err := parse(os.DirFS(r.dir))
	if err != nil {
		return fmt.Errorf("parse templates in %s: %w", r.dir, err)
	}
	r.tmpl.Store(t)
	return nil
}
