package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kero-live/kero-server/internal/catalog"
)

func TestGenerateCode(t *testing.T) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(charset, c), "unexpected char %q", c)
		}
		seen[code] = true
	}
	// 50 draws from a 36^6 space colliding would point at a broken RNG.
	assert.Greater(t, len(seen), 1)
}

func TestSearchSongs_ProxiesCatalog(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/song/Dynamite.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`[{"no":"97412","title":"Dynamite","singer":"BTS","brand":"tj"}]`))
	}))
	t.Cleanup(upstream.Close)

	api := &API{Catalog: catalog.New(upstream.URL, zap.NewNop()), Log: zap.NewNop()}

	req := httptest.NewRequest(http.MethodGet, "/search/songs?title=Dynamite", nil)
	rec := httptest.NewRecorder()
	api.searchSongs(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Songs []catalog.Song `json:"songs"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data.Songs, 1)
	assert.Equal(t, "97412", body.Data.Songs[0].Number)
}

func TestSearchSongs_RequiresQuery(t *testing.T) {
	api := &API{Log: zap.NewNop()}

	req := httptest.NewRequest(http.MethodGet, "/search/songs", nil)
	rec := httptest.NewRecorder()
	api.searchSongs(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
