package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2beens/catalogsvc/internal/auth"
	"github.com/2beens/catalogsvc/internal/middleware"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuthMiddlewareHandler_AuthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLoginChecker := NewMockloginChecker(ctrl)
	authMiddleware := middleware.NewAuthMiddlewareHandler(mockLoginChecker)

	testCases := []struct {
		name               string
		path               string
		method             string
		token              string
		expectedStatusCode int
		expectCheck        bool
		mockIsLogged       bool
		mockIsLoggedErr    error
		expectNextCalled   bool
	}{
		{
			name:               "RootWithoutCookie",
			path:               "/",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
			expectNextCalled:   true,
		},
		{
			name:               "VersionWithoutCookie",
			path:               "/version",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
			expectNextCalled:   true,
		},
		{
			name:               "LoginWithoutCookie",
			path:               "/api/login",
			method:             "POST",
			expectedStatusCode: http.StatusOK,
			expectNextCalled:   true,
		},
		{
			name:               "CheckAuthWithoutCookie",
			path:               "/api/check-auth",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
			expectNextCalled:   true,
		},
		{
			name:               "OptionsPreflight",
			path:               "/api/catalog",
			method:             "OPTIONS",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "CatalogWithoutCookie",
			path:               "/api/catalog",
			method:             "GET",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "LogoutWithoutCookie",
			path:               "/api/logout",
			method:             "POST",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "ValidSession",
			path:               "/api/catalog",
			method:             "GET",
			token:              "valid-token",
			expectCheck:        true,
			mockIsLogged:       true,
			expectedStatusCode: http.StatusOK,
			expectNextCalled:   true,
		},
		{
			name:               "InvalidSession",
			path:               "/api/catalog",
			method:             "POST",
			token:              "invalid-token",
			expectCheck:        true,
			mockIsLogged:       false,
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "CheckerError",
			path:               "/api/catalog/123/image",
			method:             "GET",
			token:              "some-token",
			expectCheck:        true,
			mockIsLoggedErr:    errors.New("redis down"),
			expectedStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: tc.token})
			}

			if tc.expectCheck {
				mockLoginChecker.EXPECT().
					IsAuthenticated(gomock.Any(), tc.token).
					Return(tc.mockIsLogged, tc.mockIsLoggedErr).
					Times(1)
			}

			nextCalled := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
			})

			rr := httptest.NewRecorder()
			authMiddleware.AuthCheck()(handler).ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatusCode, rr.Code)
			assert.Equal(t, tc.expectNextCalled, nextCalled)
			if tc.expectedStatusCode == http.StatusUnauthorized {
				assert.JSONEq(t, `{"message":"Unauthorized"}`, rr.Body.String())
			}
		})
	}
}

func TestAuthMiddlewareHandler_EmptyCookie(t *testing.T) {
	ctrl := gomock.NewController(t)
	authMiddleware := middleware.NewAuthMiddlewareHandler(NewMockloginChecker(ctrl))

	req := httptest.NewRequest("GET", "/api/catalog", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: ""})
	rr := httptest.NewRecorder()
	authMiddleware.AuthCheck()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler must not be called")
	})).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
