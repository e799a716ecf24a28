package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developer-yasir/support-panel/internal/domain"
	apperrors "github.com/developer-yasir/support-panel/pkg/util"
)

func TestGenerateAndParseToken(t *testing.T) {
	tm := NewTokenManager("s3cret", 30)
	issued := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return issued }

	token, expiresAt, err := tm.GenerateToken("wallboard-1", domain.SubjectTypeDashboard)
	require.NoError(t, err)
	assert.Equal(t, issued.Add(30*time.Minute), expiresAt)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "wallboard-1", claims.SubjectID)
	assert.Equal(t, domain.SubjectTypeDashboard, claims.Subject)

	tm.now = func() time.Time { return issued.Add(31 * time.Minute) }
	_, err = tm.ParseToken(token)
	assert.Error(t, err, "expired")
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenManager("one", 5).GenerateToken("a", domain.SubjectTypeAgent)
	require.NoError(t, err)

	_, err = NewTokenManager("two", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestGenerateTokenValidation(t *testing.T) {
	tm := NewTokenManager("s", 5)
	_, _, err := tm.GenerateToken(" ", domain.SubjectTypeAgent)
	assert.Error(t, err)
	_, _, err = tm.GenerateToken("x", domain.SubjectType("END_USER"))
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	for _, bad := range []string{"", "Bearer", "Bearer   ", "Basic abc", "abc"} {
		_, ok := BearerToken(bad)
		assert.False(t, ok, bad)
	}
}

func newAuthApp(tm *TokenManager) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	mw := NewAuthMiddleware(tm)
	ok := func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.SubjectID)
	}
	app.Get("/read", mw.Handle, RequireSubject(domain.SubjectTypeDashboard, domain.SubjectTypeAgent), ok)
	app.Get("/write", mw.Handle, RequireSubject(domain.SubjectTypeAgent), ok)
	app.Get("/open", RequireSubject(domain.SubjectTypeAgent), ok)
	return app
}

func TestMiddlewareAndSubjects(t *testing.T) {
	tm := NewTokenManager("s3cret", 10)
	app := newAuthApp(tm)
	dashboard, _, err := tm.GenerateToken("wall-1", domain.SubjectTypeDashboard)
	require.NoError(t, err)
	agentTok, _, err := tm.GenerateToken("agent-1", domain.SubjectTypeAgent)
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/read", "", http.StatusUnauthorized},
		{"malformed header", "/read", "Token " + dashboard, http.StatusUnauthorized},
		{"garbage token", "/read", "Bearer nope", http.StatusUnauthorized},
		{"dashboard reads", "/read", "Bearer " + dashboard, http.StatusOK},
		{"dashboard cannot write", "/write", "Bearer " + dashboard, http.StatusForbidden},
		{"agent writes", "/write", "Bearer " + agentTok, http.StatusOK},
		{"no principal", "/open", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}
