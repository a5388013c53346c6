package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type checkAuthResponse struct {
	IsAuthenticated bool `json:"isAuthenticated"`
	User            *struct {
		Username string `json:"username"`
	} `json:"user"`
}

func postLogin(ctx context.Context, t *testing.T, client *http.Client, username, password string) *http.Response {
	t.Helper()
	loginReqJson, err := json.Marshal(loginRequest{Username: username, Password: password})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/login", serverEndpoint), bytes.NewBuffer(loginReqJson))
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

// doLogin logs the client in, the session cookie stays in the client's jar
func doLogin(ctx context.Context, t *testing.T, client *http.Client) {
	t.Helper()
	resp := postLogin(ctx, t, client, testUsername, testPassword)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func checkAuth(ctx context.Context, t *testing.T, client *http.Client) checkAuthResponse {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/api/check-auth", serverEndpoint), nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var checkResp checkAuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&checkResp))
	return checkResp
}

func (s *IntegrationTestSuite) TestLogin() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))

	cases := map[string]struct {
		loginReq           loginRequest
		expectedStatusCode int
		expectedBody       string
	}{
		"good creds": {
			loginReq:           loginRequest{Username: testUsername, Password: testPassword},
			expectedStatusCode: http.StatusOK,
			expectedBody:       fmt.Sprintf(`{"success":true,"user":{"username":%q}}`, testUsername),
		},
		"bad password": {
			loginReq:           loginRequest{Username: testUsername, Password: "bad-password"},
			expectedStatusCode: http.StatusUnauthorized,
			expectedBody:       `{"message":"invalid credentials"}`,
		},
		"bad username": {
			loginReq:           loginRequest{Username: "bad-username", Password: testPassword},
			expectedStatusCode: http.StatusUnauthorized,
			expectedBody:       `{"message":"invalid credentials"}`,
		},
		"empty password": {
			loginReq:           loginRequest{Username: testUsername},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"message":"username and password are required"}`,
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			resp := postLogin(ctx, t, s.newHTTPClient(), tc.loginReq.Username, tc.loginReq.Password)
			defer resp.Body.Close()
			require.Equal(t, tc.expectedStatusCode, resp.StatusCode)

			respBytes, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.JSONEq(t, tc.expectedBody, string(respBytes))
		})
	}

	require.NoError(t, s.redisDataCleanup(ctx))
}

func (s *IntegrationTestSuite) TestLoginCheckAuthLogout() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))

	client := s.newHTTPClient()
	assert.False(t, checkAuth(ctx, t, client).IsAuthenticated)

	doLogin(ctx, t, client)

	checkResp := checkAuth(ctx, t, client)
	require.True(t, checkResp.IsAuthenticated)
	require.NotNil(t, checkResp.User)
	assert.Equal(t, testUsername, checkResp.User.Username)

	// session is stored in redis with a ttl
	sessionKeys, err := s.redisClient.Keys(ctx, "catalog-session||*").Result()
	require.NoError(t, err)
	require.Len(t, sessionKeys, 1)
	ttl, err := s.redisClient.TTL(ctx, sessionKeys[0]).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/logout", serverEndpoint), nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.False(t, checkAuth(ctx, t, client).IsAuthenticated)
	sessionKeys, err = s.redisClient.Keys(ctx, "catalog-session||*").Result()
	require.NoError(t, err)
	assert.Empty(t, sessionKeys)
}

func (s *IntegrationTestSuite) TestLoginRateLimiting() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// limiter state lives in redis, start from zero
	require.NoError(t, s.redisDataCleanup(ctx))

	client := s.newHTTPClient()
	for i := 1; i <= loginAllowedPerMin+5; i++ {
		resp := postLogin(ctx, t, client, testUsername, "bad-password")
		if i <= loginAllowedPerMin {
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "iteration: %d", i)
		} else {
			require.Equal(t, http.StatusTooEarly, resp.StatusCode, "iteration: %d", i)
			var msgResp struct {
				Message string `json:"message"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgResp), "iteration: %d", i)
			assert.Contains(t, msgResp.Message, "retry after", "iteration: %d", i)
		}
		assert.NoError(t, resp.Body.Close())
	}

	require.NoError(t, s.redisDataCleanup(ctx))
}
