package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/CrowderSoup/microjobs/dashboard"
	"github.com/CrowderSoup/microjobs/services"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static serves the embedded stylesheet and scripts.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// Renderer executes the page templates. Every page is parsed together with
// the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"pageURL": func(index int) string {
		return dashboard.MyTasksPath + "?page=" + strconv.Itoa(index+1)
	},
	"mode": func(s dashboard.Sidebar) string { return s.Mode().String() },
	"inc":  func(i int) int { return i + 1 },
	"dec":  func(i int) int { return i - 1 },
}

func NewRenderer() (*Renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		base := strings.TrimSuffix(strings.TrimPrefix(name, "templates/"), ".html")
		if base == "layout" {
			continue
		}
		t, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[base] = t
	}
	return r, nil
}

// pageData is handed to every template.
type pageData struct {
	Title       string
	Email       string
	Nav         dashboard.Navigation
	Path        string
	Notices     []services.Notice
	RefreshSecs int
	Body        any
}

// MenuOpenURL and MenuCloseURL drive the drawer without JavaScript.
func (p pageData) MenuOpenURL() string  { return withQuery(p.Path, "menu", "open") }
func (p pageData) MenuCloseURL() string { return withQuery(p.Path, "menu", "") }

func withQuery(path, key, value string) string {
	base, rawQuery, _ := strings.Cut(path, "?")
	var kept []string
	for _, kv := range strings.Split(rawQuery, "&") {
		if kv == "" || strings.HasPrefix(kv, key+"=") {
			continue
		}
		kept = append(kept, kv)
	}
	if value != "" {
		kept = append(kept, key+"="+value)
	}
	if len(kept) == 0 {
		return base
	}
	return base + "?" + strings.Join(kept, "&")
}

func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data pageData) {
	t, ok := r.pages[page]
	if !ok {
		log.Printf("Unknown template %q", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		log.Printf("Error rendering %s: %v", page, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Error writing %s: %v", page, err)
	}
}
