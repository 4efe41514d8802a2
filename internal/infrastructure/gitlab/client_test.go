package gitlab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FindCoverageComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/group%2Fapp/merge_requests/4/notes", r.URL.EscapedPath())
		assert.Equal(t, "tok", r.Header.Get("PRIVATE-TOKEN"))
		_ = json.NewEncoder(w).Encode([]note{
			{ID: 1, Body: CommentMarker, System: true},
			{ID: 2, Body: "nice"},
			{ID: 3, Body: CommentMarker + "\nCoverage 50%"},
		})
	}))
	defer srv.Close()

	c := NewClientWithHTTP("tok", srv.Client(), srv.URL)
	id, err := c.FindCoverageComment(context.Background(), "group", "app", 4)

	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.Equal(t, application.ProviderGitLab, c.Provider())
}

func TestClient_CreateComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, CommentMarker+"\nCoverage 70%", payload["body"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(note{ID: 11})
	}))
	defer srv.Close()

	c := NewClientWithHTTP("tok", srv.Client(), srv.URL+"/api/v4")
	id, link, err := c.CreateComment(context.Background(), "group", "app", 4, "Coverage 70%")

	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.Equal(t, srv.URL+"/group/app/-/merge_requests/4#note_11", link)
}

func TestClient_UpdateComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/projects/group%2Fapp/merge_requests/4/notes/11", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"id":11}`))
	}))
	defer srv.Close()

	err := NewClientWithHTTP("tok", srv.Client(), srv.URL).UpdateComment(context.Background(), "group", "app", 4, 11, "Coverage 71%")
	require.NoError(t, err)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClientWithHTTP("tok", srv.Client(), srv.URL).FindCoverageComment(context.Background(), "g", "a", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNewClient_TokenFallback(t *testing.T) {
	t.Setenv("GITLAB_TOKEN", "")
	t.Setenv("CI_JOB_TOKEN", "job")
	c := NewClient("")
	assert.Equal(t, "job", c.token)
	assert.Equal(t, DefaultAPIURL, c.apiURL)
}
