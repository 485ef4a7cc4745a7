package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMatch_TitleAndArtist(t *testing.T) {
	srv := testServer(t, map[string]string{
		"/song/Dynamite/BTS.json": `[{"no":"97412","title":"Dynamite","singer":"BTS","brand":"tj"}]`,
	})
	c := New(srv.URL, zap.NewNop())

	num, err := c.Match(context.Background(), "Dynamite", "BTS")
	require.NoError(t, err)
	assert.Equal(t, "97412", num)
}

func TestMatch_FallsBackToTitleOnly(t *testing.T) {
	srv := testServer(t, map[string]string{
		"/song/Dynamite.json": `[{"no":"97412","title":"Dynamite","singer":"BTS","brand":"tj"}]`,
	})
	c := New(srv.URL, zap.NewNop())

	num, err := c.Match(context.Background(), "Dynamite", "Unknown Artist")
	require.NoError(t, err)
	assert.Equal(t, "97412", num)
}

func TestMatch_NoResultIsEmptyNotError(t *testing.T) {
	srv := testServer(t, map[string]string{})
	c := New(srv.URL, zap.NewNop())

	num, err := c.Match(context.Background(), "Nonexistent Song", "")
	require.NoError(t, err)
	assert.Empty(t, num)
}

func TestSearchByTitle_DecodesEntries(t *testing.T) {
	srv := testServer(t, map[string]string{
		"/song/Dynamite.json": `[
			{"no":"97412","title":"Dynamite","singer":"BTS","brand":"tj"},
			{"no":"44478","title":"Dynamite","singer":"Taio Cruz","brand":"tj"}
		]`,
	})
	c := New(srv.URL, zap.NewNop())

	songs, err := c.SearchByTitle(context.Background(), "Dynamite")
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "Taio Cruz", songs[1].Singer)
}

func TestGet_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, zap.NewNop())

	_, err := c.SearchByTitle(context.Background(), "anything")
	assert.Error(t, err)
}
