package services

import (
	"net/url"
	"testing"

	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigator_StartsOnHome(t *testing.T) {
	nav := NewNavigator()

	assert.Equal(t, models.PageHome, nav.State().Page)
	assert.Equal(t, models.PageHome, nav.Rendered(nil))
}

func TestNavigator_NavigateUnknownPage(t *testing.T) {
	nav := NewNavigator()

	err := nav.Navigate(models.Page("settings"))

	assert.ErrorIs(t, err, ErrUnknownPage)
	assert.Equal(t, models.PageHome, nav.State().Page)
}

func TestNavigator_GatedPagesRenderLogin(t *testing.T) {
	user := &models.Identity{ID: "u1", Email: "a@b.co"}

	for _, page := range []models.Page{models.PageDashboard, models.PageSuccess} {
		nav := NewNavigator()
		require.NoError(t, nav.Navigate(page))

		assert.Equal(t, models.PageLogin, nav.Rendered(nil), "page %s without user", page)
		assert.Equal(t, page, nav.State().Page, "requested page is kept")
		assert.Equal(t, page, nav.Rendered(user), "page %s with user", page)
	}
}

func TestNavigator_OpenPagesRenderWithoutUser(t *testing.T) {
	for _, page := range []models.Page{models.PageHome, models.PageLogin, models.PageSignUp} {
		nav := NewNavigator()
		require.NoError(t, nav.Navigate(page))
		assert.Equal(t, page, nav.Rendered(nil))
	}
}

func TestNavigator_ApplyEntryURL_Success(t *testing.T) {
	nav := NewNavigator()
	u, _ := url.Parse("http://localhost:8080/?success=true&session_id=cs_test_123")

	clean, stripped := nav.ApplyEntryURL(u)

	assert.True(t, stripped)
	assert.Equal(t, "http://localhost:8080/", clean)
	assert.Equal(t, models.NavigationState{Page: models.PageSuccess, SessionID: "cs_test_123"}, nav.State())
}

func TestNavigator_ApplyEntryURL_SuccessWithoutSessionID(t *testing.T) {
	nav := NewNavigator()
	u, _ := url.Parse("http://localhost:8080/?success=true")

	clean, stripped := nav.ApplyEntryURL(u)

	assert.False(t, stripped)
	assert.Equal(t, u.String(), clean)
	assert.Equal(t, models.PageHome, nav.State().Page)
}

func TestNavigator_ApplyEntryURL_Canceled(t *testing.T) {
	nav := NewNavigator()
	u, _ := url.Parse("http://localhost:8080/?canceled=true")

	clean, stripped := nav.ApplyEntryURL(u)

	assert.True(t, stripped)
	assert.Equal(t, "http://localhost:8080/", clean)
	assert.Equal(t, models.PageDashboard, nav.State().Page)
	assert.Empty(t, nav.State().SessionID)
}

func TestNavigator_ApplyEntryURL_SuccessWinsOverCanceled(t *testing.T) {
	nav := NewNavigator()
	u, _ := url.Parse("/?canceled=true&success=true&session_id=cs_1")

	_, stripped := nav.ApplyEntryURL(u)

	assert.True(t, stripped)
	assert.Equal(t, models.PageSuccess, nav.State().Page)
}

func TestNavigator_ApplyEntryURL_KeepsOtherParams(t *testing.T) {
	nav := NewNavigator()
	u, _ := url.Parse("/?ref=mail&success=true&session_id=cs_1")

	clean, stripped := nav.ApplyEntryURL(u)

	assert.True(t, stripped)
	assert.Equal(t, "/?ref=mail", clean)
}

func TestNavigator_ApplyEntryURL_NoParams(t *testing.T) {
	nav := NewNavigator()
	require.NoError(t, nav.Navigate(models.PageSignUp))
	u, _ := url.Parse("/")

	_, stripped := nav.ApplyEntryURL(u)

	assert.False(t, stripped)
	assert.Equal(t, models.PageSignUp, nav.State().Page)
}

func TestNavigator_SessionIDClearedWhenLeavingSuccess(t *testing.T) {
	nav := NewNavigator()
	u, _ := url.Parse("/?success=true&session_id=cs_1")
	nav.ApplyEntryURL(u)

	require.NoError(t, nav.Navigate(models.PageDashboard))

	assert.Empty(t, nav.State().SessionID)
}

func TestNavigator_AfterSignIn(t *testing.T) {
	tests := []struct {
		from models.Page
		want models.Page
	}{
		{models.PageLogin, models.PageDashboard},
		{models.PageSignUp, models.PageDashboard},
		{models.PageHome, models.PageHome},
		{models.PageSuccess, models.PageSuccess},
		{models.PageDashboard, models.PageDashboard},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			nav := NewNavigator()
			require.NoError(t, nav.Navigate(tt.from))
			assert.Equal(t, tt.want, nav.AfterSignIn())
		})
	}
}
