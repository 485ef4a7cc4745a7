package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kero-live/kero-server/internal/ws"
)

// Routes wires the REST surface and the websocket endpoint.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/rooms", a.createRoom)
	r.Get("/rooms", a.listRooms)
	r.Get("/rooms/{code}", a.getRoom)
	r.Delete("/rooms/{code}", a.deleteRoom)

	r.Post("/songs", a.submitSong)
	r.Get("/songs/{id}", a.getSong)
	r.Get("/songs/{id}/status", a.songStatus)
	r.Get("/songs/{id}/quiz", a.songQuiz)
	r.Post("/songs/{id}/processing-callback", a.processingCallback)

	r.Get("/search/songs", a.searchSongs)
	r.Get("/search/number", a.searchByNumber)
	r.Get("/search/popular", a.popularSongs)

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(a.Hub, a.Log))
	return r
}
