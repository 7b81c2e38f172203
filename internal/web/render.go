package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"experimenter/internal/experiments"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutTemplate = "layout.html"

// renderer executes one template set per page, each sharing the layout.
type renderer struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(experiments.DateLayout)
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04 UTC")
	},
	"percent": func(v float64) string {
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
	"answer": func(v *bool) string {
		switch {
		case v == nil:
			return ""
		case *v:
			return "true"
		default:
			return "false"
		}
	},
	"dict": func(pairs ...any) (map[string]any, error) {
		if len(pairs)%2 != 0 {
			return nil, fmt.Errorf("dict: odd argument count %d", len(pairs))
		}
		out := make(map[string]any, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			key, ok := pairs[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
			}
			out[key] = pairs[i+1]
		}
		return out, nil
	},
	// trusted renders notification bodies, which are built from fixed
	// templates and may carry links.
	"trusted": func(s string) template.HTML { return template.HTML(s) },
}

func newRenderer() (*renderer, error) {
	entries, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	r := &renderer{pages: make(map[string]*template.Template)}
	for _, entry := range entries {
		name := path.Base(entry)
		if name == layoutTemplate {
			continue
		}
		tmpl, err := template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(templateFS, "templates/"+layoutTemplate, entry)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render implements echo.Renderer.
func (r *renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	return tmpl.ExecuteTemplate(w, layoutTemplate, data)
}
