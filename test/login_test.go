package test

import (
	"context"
	"net/http"

	"github.com/2beens/catalogguard/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestLogin() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cases := map[string]struct {
		username           string
		password           string
		expectedStatusCode int
		expectedError      string
	}{
		"good creds": {
			username:           testUsername,
			password:           testPassword,
			expectedStatusCode: http.StatusOK,
		},
		"bad password": {
			username:           testUsername,
			password:           "bad-password",
			expectedStatusCode: http.StatusUnauthorized,
			expectedError:      "Invalid credentials",
		},
		"bad username": {
			username:           "bad-username",
			password:           testPassword,
			expectedStatusCode: http.StatusUnauthorized,
			expectedError:      "Invalid credentials",
		},
		"empty password": {
			username:           testUsername,
			password:           "",
			expectedStatusCode: http.StatusBadRequest,
			expectedError:      "Username and password are required",
		},
	}

	for tn, tc := range cases {
		s.Run(tn, func() {
			resp, err := s.httpClient.Do(newLoginRequest(ctx, t, "10.10.0.1", tc.username, tc.password))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatusCode, resp.StatusCode)
			if tc.expectedError != "" {
				assert.Equal(t, tc.expectedError, readError(t, resp))
			} else {
				cookies := resp.Cookies()
				require.Len(t, cookies, 1)
				assert.Equal(t, auth.CookieName, cookies[0].Name)
				assert.True(t, cookies[0].HttpOnly)
			}
		})
	}
}

func (s *IntegrationTestSuite) TestLogin_RateLimited() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 5; i++ {
		resp, err := s.httpClient.Do(newLoginRequest(ctx, t, "10.10.0.2", testUsername, "bad-password"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "iteration: %d", i)
		assert.NoError(t, resp.Body.Close())
	}

	resp, err := s.httpClient.Do(newLoginRequest(ctx, t, "10.10.0.2", testUsername, testPassword))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Contains(t, readError(t, resp), "Too many login attempts")

	// the counter lives in redis, under the namespaced key
	exists, err := s.redisClient.Exists(ctx, "ratelimit:login:10.10.0.2").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func (s *IntegrationTestSuite) TestLogout_RevokesToken() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := doLogin(ctx, t, s.httpClient, "10.10.0.3")

	sessionReq := func() *http.Response {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverEndpoint+"/api/admin/contacts", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := sessionReq()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, resp.Body.Close())

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, serverEndpoint+"/api/admin/auth", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	logoutResp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, logoutResp.StatusCode)
	assert.NoError(t, logoutResp.Body.Close())

	resp = sessionReq()
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid token", readError(t, resp))
}
