package server

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/telerag/telerag/pkg/models"
	"github.com/telerag/telerag/pkg/retrieval"
)

var validate = validator.New()

// SearchHandler runs a retrieval search and returns the surviving matches.
func SearchHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload models.SearchPayload
		if err := decodeJSON(r, &payload); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if err := validate.Struct(payload); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		retriever := retrieval.NewRetriever(
			appState.EmbeddingClient,
			appState.VectorIndex,
			appState.Config.Retrieval,
		)
		results := retriever.Search(r.Context(), payload.Text, payload.TopK)

		if err := encodeJSON(w, results); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}
