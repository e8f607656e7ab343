package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/telerag/telerag/internal"
	"github.com/telerag/telerag/pkg/models"
)

var log = internal.GetLogger()

const OKResponse = "OK"

// GetSessionHandler returns a session with its rolling history and metadata.
func GetSessionHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionId")

		session, err := appState.SessionStore.Get(r.Context(), sessionID)
		if err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
		if session == nil {
			renderError(w, models.NewNotFoundError("session "+sessionID), http.StatusNotFound)
			return
		}

		if err := encodeJSON(w, session); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// DeleteSessionHandler clears a session's conversation history.
func DeleteSessionHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionId")

		if err := appState.SessionStore.Delete(r.Context(), sessionID); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(OKResponse))
	}
}
