package httpserver

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lanshare/internal/session"
)

//go:embed web/templates/*.html web/assets/*
var embeddedWeb embed.FS

var pageNames = []string{"home", "browse", "connect"}

var templateFuncs = template.FuncMap{
	"urlpath": urlPath,
	"clock":   func(t time.Time) string { return t.Local().Format("15:04:05") },
}

func loadPages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(embeddedWeb,
			"web/templates/layout.html",
			"web/templates/"+name+".html",
		)
		if err != nil {
			return nil, err
		}
		pages[name] = t
	}
	return pages, nil
}

// page is what layout.html sees. Data is the page specific view.
type page struct {
	Title       string
	Flashes     []session.Flash
	UserName    string
	ActiveCount int
	Data        any
}

// render pops the pending flashes, executes the page into a buffer and only
// then writes, so a template error still yields a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, sess *session.Session, name, title string, data any) {
	p := page{
		Title:       title,
		Flashes:     sess.PopFlashes(),
		UserName:    sess.Name(),
		ActiveCount: s.presence.CountActive(),
		Data:        data,
	}
	if len(p.Flashes) > 0 {
		s.saveSession(w, r, sess)
	}
	var buf bytes.Buffer
	if err := s.pages[name].Execute(&buf, p); err != nil {
		LoggerFromContext(r.Context()).Error("render template", "page", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// urlPath escapes each segment of a slash separated relative path.
func urlPath(rel string) string {
	if rel == "" {
		return ""
	}
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
