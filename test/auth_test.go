package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/2beens/catalogguard/internal/admin"
	"github.com/2beens/catalogguard/internal/auth"

	"github.com/stretchr/testify/require"
)

func newLoginRequest(ctx context.Context, t *testing.T, clientIP, username, password string) *http.Request {
	loginReqJson, err := json.Marshal(auth.Credentials{
		Username: username,
		Password: password,
	})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverEndpoint+"/api/admin/auth", bytes.NewBuffer(loginReqJson))
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", clientIP)
	return req
}

func doLogin(ctx context.Context, t *testing.T, client *http.Client, clientIP string) string {
	resp, err := client.Do(newLoginRequest(ctx, t, clientIP, testUsername, testPassword))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var loginResp admin.LoginResponse
	require.NoError(t, json.Unmarshal(respBytes, &loginResp))
	require.NotEmpty(t, loginResp.Token)

	return loginResp.Token
}

func readError(t *testing.T, resp *http.Response) string {
	var errResp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	return errResp.Error
}
