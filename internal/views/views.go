package views

import (
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/gin-gonic/gin/render"
)

//go:embed templates/*.html
var templateFS embed.FS

// shared шаблони, які підключаються до кожної сторінки
var shared = []string{"templates/layout.html", "templates/navbar.html"}

// ProductView продукт з прапором незавершеного checkout
type ProductView struct {
	models.Product
	Pending bool
}

// PageData дані для рендерингу сторінки
type PageData struct {
	Title     string
	Page      models.Page
	Requested models.Page
	User      *models.Identity
	Profile   *models.Profile
	Products  []ProductView
	Flash     string
	Error     string
	// CleanURL адреса без параметрів checkout для history.replaceState
	CleanURL         string
	SessionID        string
	PurchasedProduct string
	RefreshSeconds   int
	BotName          string
}

// Renderer реалізація gin render.HTMLRender з окремим набором шаблонів на сторінку
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer парсить вбудовані шаблони
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"formatDate": formatDate,
	}

	pages := []string{"loading", "home", "login", "signup", "dashboard", "success"}
	renderer := &Renderer{pages: make(map[string]*template.Template, len(pages))}

	for _, page := range pages {
		files := append([]string{"templates/" + page + ".html"}, shared...)
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(templateFS, files...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", page, err)
		}
		renderer.pages[page] = tmpl
	}

	return renderer, nil
}

// Instance повертає render для сторінки
func (r *Renderer) Instance(name string, data any) render.Render {
	return render.HTML{
		Template: r.pages[name],
		Name:     "layout",
		Data:     data,
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("January 2, 2006")
}
