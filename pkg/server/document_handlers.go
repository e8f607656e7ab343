package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/telerag/telerag/pkg/ingest"
	"github.com/telerag/telerag/pkg/models"
)

var errInvalidFilename = errors.New("invalid filename")

func newIngestor(appState *models.AppState) *ingest.Ingestor {
	return ingest.NewIngestor(
		appState.EmbeddingClient,
		appState.VectorIndex,
		appState.Config.Retrieval.Namespace,
		appState.Config.Ingest,
	)
}

// IngestDocumentHandler ingests a single document from the docs directory.
func IngestDocumentHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		// reject path traversal out of the docs directory
		if filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
			renderError(w, errInvalidFilename, http.StatusBadRequest)
			return
		}

		path := filepath.Join(appState.Config.Ingest.DocsDir, filename)
		result, err := newIngestor(appState).Ingest(r.Context(), path)
		if err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}

		if err := encodeJSON(w, result); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// IngestAllHandler ingests every supported document in the docs directory.
func IngestAllHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := newIngestor(appState).IngestDir(r.Context())
		if err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}

		if err := encodeJSON(w, results); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}
