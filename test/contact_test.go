package test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/2beens/catalogguard/internal/contact"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) submitContact(ctx context.Context, clientIP string, submission contact.Submission) *http.Response {
	t := s.T()
	body, err := json.Marshal(submission)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverEndpoint+"/api/contact", strings.NewReader(string(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", clientIP)

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (s *IntegrationTestSuite) adminDo(ctx context.Context, method, path, token string) *http.Response {
	t := s.T()
	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (s *IntegrationTestSuite) TestContact_SubmitAndManage() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subject := gofakeit.Sentence(4)
	resp := s.submitContact(ctx, "10.20.0.1", contact.Submission{
		Name:    gofakeit.Name(),
		Email:   "  Buyer@Example.com ",
		Subject: subject,
		Message: "<b>Is the blue one still available?</b>",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var submitResp contact.SubmitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitResp))
	require.NoError(t, resp.Body.Close())
	require.True(t, submitResp.Success)
	require.Positive(t, submitResp.ID)

	// stored sanitized
	var email, message, clientKey string
	require.NoError(t, s.DB.QueryRow(
		`SELECT email, message, client_key FROM contact_message WHERE id = $1`, submitResp.ID,
	).Scan(&email, &message, &clientKey))
	assert.Equal(t, "buyer@example.com", email)
	assert.Equal(t, "bIs the blue one still available?/b", message)
	assert.Equal(t, "10.20.0.1", clientKey)

	token := doLogin(ctx, t, s.httpClient, "10.20.0.2")

	resp = s.adminDo(ctx, http.MethodGet, "/api/admin/contacts?unread=true", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list contact.ListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.NoError(t, resp.Body.Close())
	found := false
	for _, msg := range list.Messages {
		if msg.ID == submitResp.ID {
			found = true
			assert.Equal(t, subject, msg.Subject)
		}
	}
	assert.True(t, found)

	msgPath := "/api/admin/contacts/" + itoa(submitResp.ID)
	resp = s.adminDo(ctx, http.MethodPut, msgPath+"/read", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, resp.Body.Close())
	assert.Equal(t, 1, s.countRows(`SELECT count(*) FROM contact_message WHERE id = $1 AND read`, submitResp.ID))

	resp = s.adminDo(ctx, http.MethodDelete, msgPath, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, resp.Body.Close())
	assert.Equal(t, 0, s.countRows(`SELECT count(*) FROM contact_message WHERE id = $1`, submitResp.ID))

	resp = s.adminDo(ctx, http.MethodDelete, msgPath, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NoError(t, resp.Body.Close())
}

func (s *IntegrationTestSuite) TestContact_RateLimited() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := s.countRows(`SELECT count(*) FROM contact_message WHERE client_key = $1`, "10.20.0.3")

	submission := contact.Submission{
		Name:    gofakeit.Name(),
		Email:   "someone@example.com",
		Subject: "Shipping",
		Message: gofakeit.Sentence(10),
	}
	for i := 0; i < 3; i++ {
		resp := s.submitContact(ctx, "10.20.0.3", submission)
		assert.Equal(t, http.StatusCreated, resp.StatusCode, "iteration: %d", i)
		assert.NoError(t, resp.Body.Close())
	}

	resp := s.submitContact(ctx, "10.20.0.3", submission)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "600", resp.Header.Get("Retry-After"))

	assert.Equal(t, before+3, s.countRows(`SELECT count(*) FROM contact_message WHERE client_key = $1`, "10.20.0.3"))
}
