package users_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpowersdev/gomcp/users"
)

func newTestAPI(t *testing.T) (*httptest.Server, *users.Repo) {
	t.Helper()

	repo := newTestRepo(t)
	handler := users.NewHandler(repo, slog.Default())

	ts := httptest.NewServer(handler.Routes())
	t.Cleanup(ts.Close)

	return ts, repo
}

func TestHandlerCreate(t *testing.T) {
	ts, _ := newTestAPI(t)

	resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader(`{"name":"Alice"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var user users.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.NotZero(t, user.ID)
	assert.Equal(t, "Alice", user.Name)
}

func TestHandlerCreateInvalid(t *testing.T) {
	ts, _ := newTestAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed body", body: `{not json`},
		{name: "missing name", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestHandlerFindByID(t *testing.T) {
	ts, repo := newTestAPI(t)

	created, err := repo.Create(context.Background(), users.CreateUser{Name: "Bob"})
	require.NoError(t, err)

	resp, err := http.Get(fmt.Sprintf("%s/%d", ts.URL, created.ID))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var user users.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, "Bob", user.Name)
}

func TestHandlerFindByIDNotFound(t *testing.T) {
	ts, _ := newTestAPI(t)

	resp, err := http.Get(ts.URL + "/999")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerUpdate(t *testing.T) {
	ts, repo := newTestAPI(t)

	created, err := repo.Create(context.Background(), users.CreateUser{Name: "Carol"})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPatch,
		fmt.Sprintf("%s/%d", ts.URL, created.ID),
		strings.NewReader(`{"name":"Caroline"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var user users.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.Equal(t, "Caroline", user.Name)
}

func TestHandlerDelete(t *testing.T) {
	ts, repo := newTestAPI(t)

	created, err := repo.Create(context.Background(), users.CreateUser{Name: "Dave"})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/%d", ts.URL, created.ID), nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = repo.FindByID(context.Background(), created.ID)
	assert.ErrorIs(t, err, users.ErrUserNotFound)
}
