package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/SkyMonder/SkyCallPro/internal/auth"
	"github.com/SkyMonder/SkyCallPro/internal/chat"
	"github.com/SkyMonder/SkyCallPro/internal/directory"
	"github.com/SkyMonder/SkyCallPro/internal/hub"
	"github.com/SkyMonder/SkyCallPro/internal/registry"
	"github.com/SkyMonder/SkyCallPro/internal/store"
)

func newTestServer(t *testing.T) (*Server, *auth.Manager, *store.SQLiteStore) {
	t.Helper()
	db, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	dir := directory.New(db, log)
	tokens := auth.NewManager("test-secret", time.Hour)
	h := hub.NewHub()
	reg := registry.New()
	chatRelay := chat.New(reg, db, log)

	return NewServer(dir, chatRelay, h, reg, tokens, log), tokens, db
}

func doJSON(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestRegisterAndLogin(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/register",
		`{"username":"alice","password":"hunter22"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var created authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "alice", created.User.Username)
	require.Equal(t, "alice", created.User.DisplayName)
	require.Empty(t, created.Token)

	// Duplicate username.
	rec = doJSON(t, s, http.MethodPost, "/api/register",
		`{"username":"alice","password":"other1"}`, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	// Validation failures.
	rec = doJSON(t, s, http.MethodPost, "/api/register",
		`{"username":"b","password":"hunter22"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/login",
		`{"username":"alice","password":"hunter22"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var logged authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logged))
	require.NotEmpty(t, logged.Token)

	rec = doJSON(t, s, http.MethodPost, "/api/login",
		`{"username":"alice","password":"wrong1"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileLookup(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/register",
		`{"username":"alice","password":"hunter22","display_name":"Alice A."}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/users/alice", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var profile profileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	require.Equal(t, "Alice A.", profile.DisplayName)

	rec = doJSON(t, s, http.MethodGet, "/api/users/nobody", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryRequiresToken(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/history/bob", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/history/bob", "", "garbage")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHistoryReturnsConversation(t *testing.T) {
	s, tokens, db := newTestServer(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob"} {
		rec := doJSON(t, s, http.MethodPost, "/api/register",
			`{"username":"`+name+`","password":"hunter22"}`, "")
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	for i, body := range []string{"hi", "hello back"} {
		sender, recipient := "alice", "bob"
		if i%2 == 1 {
			sender, recipient = "bob", "alice"
		}
		require.NoError(t, db.AppendMessage(ctx, &store.Message{
			MessageID: sender + "-" + body,
			Sender:    sender,
			Recipient: recipient,
			Body:      body,
			CreatedAt: time.Now().UTC(),
		}))
	}

	token, err := tokens.Sign("alice")
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodGet, "/api/history/bob", "", token)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []store.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	require.Equal(t, "hi", resp.Messages[0].Body)
	require.Equal(t, "hello back", resp.Messages[1].Body)

	rec = doJSON(t, s, http.MethodGet, "/api/history/bob?limit=1", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	require.Equal(t, "hello back", resp.Messages[0].Body)

	rec = doJSON(t, s, http.MethodGet, "/api/history/bob?limit=zero", "", token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	s, tokens, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/register",
		`{"username":"alice","password":"hunter22"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	token, err := tokens.Sign("alice")
	require.NoError(t, err)

	rec = doJSON(t, s, http.MethodPut, "/api/profile",
		`{"display_name":"Alice A."}`, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/users/alice", "", "")
	var profile profileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	require.Equal(t, "Alice A.", profile.DisplayName)
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
}
