package models

// Page ідентифікатор сторінки верхнього рівня
type Page string

const (
	PageHome      Page = "home"
	PageLogin     Page = "login"
	PageSignUp    Page = "signup"
	PageDashboard Page = "dashboard"
	PageSuccess   Page = "success"
)

// Pages перелік усіх відомих сторінок
var Pages = []Page{PageHome, PageLogin, PageSignUp, PageDashboard, PageSuccess}

// Valid перевіряє чи сторінка відома
func (p Page) Valid() bool {
	for _, known := range Pages {
		if p == known {
			return true
		}
	}
	return false
}

// RequiresIdentity перевіряє чи сторінка доступна тільки після входу
func (p Page) RequiresIdentity() bool {
	return p == PageDashboard || p == PageSuccess
}

// NavigationState представляє поточний стан навігації
type NavigationState struct {
	Page      Page   `json:"page"`
	SessionID string `json:"session_id,omitempty"` // тільки для success
}

// NavigateRequest представляє запит на перехід
type NavigateRequest struct {
	Page Page `json:"page" form:"page" binding:"required"`
}
