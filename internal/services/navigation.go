package services

import (
	"net/url"
	"sync"

	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/sirupsen/logrus"
)

// Navigator стан навігації одного відвідувача.
// Збережена сторінка (requested) і показана сторінка (rendered) різні:
// закриті сторінки без користувача показують login, не змінюючи стан.
type Navigator struct {
	mu    sync.Mutex
	state models.NavigationState
}

// NewNavigator створює навігатор на сторінці home
func NewNavigator() *Navigator {
	return &Navigator{
		state: models.NavigationState{Page: models.PageHome},
	}
}

// State повертає збережений стан
func (n *Navigator) State() models.NavigationState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Navigate переходить на будь-яку відому сторінку
func (n *Navigator) Navigate(page models.Page) error {
	if !page.Valid() {
		return ErrUnknownPage
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.setLocked(page, "")
	return nil
}

// CanRender перевіряє чи сторінку можна показати для користувача
func CanRender(page models.Page, identity *models.Identity) bool {
	return !page.RequiresIdentity() || identity != nil
}

// Rendered повертає сторінку для показу
func (n *Navigator) Rendered(identity *models.Identity) models.Page {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !CanRender(n.state.Page, identity) {
		return models.PageLogin
	}
	return n.state.Page
}

// ApplyEntryURL розбирає параметри повернення з checkout.
// Повертає URL без службових параметрів і чи були вони прибрані.
func (n *Navigator) ApplyEntryURL(u *url.URL) (string, bool) {
	query := u.Query()

	n.mu.Lock()
	defer n.mu.Unlock()

	switch {
	case query.Get("success") == "true" && query.Get("session_id") != "":
		n.setLocked(models.PageSuccess, query.Get("session_id"))
		query.Del("success")
		query.Del("session_id")
	case query.Get("canceled") == "true":
		n.setLocked(models.PageDashboard, "")
		query.Del("canceled")
	default:
		return u.String(), false
	}

	clean := *u
	clean.RawQuery = query.Encode()
	clean.ForceQuery = false

	logrus.WithFields(logrus.Fields{
		"page":       n.state.Page,
		"session_id": n.state.SessionID,
	}).Info("Checkout redirect detected")

	return clean.String(), true
}

// AfterSignIn переводить з login/signup на dashboard; інші цілі зберігаються
func (n *Navigator) AfterSignIn() models.Page {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state.Page == models.PageLogin || n.state.Page == models.PageSignUp {
		n.setLocked(models.PageDashboard, "")
	}
	return n.state.Page
}

func (n *Navigator) setLocked(page models.Page, sessionID string) {
	if page != models.PageSuccess {
		sessionID = ""
	}
	n.state = models.NavigationState{Page: page, SessionID: sessionID}
}
