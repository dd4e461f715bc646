package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (h *handler) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.app.Reports.ListModels(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (h *handler) getModel(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]
	model, err := h.app.Reports.GetModel(r.Context(), version)
	if err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (h *handler) report(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]
	markdown, err := h.app.Reports.Report(r.Context(), version)
	if err != nil {
		writeServiceError(w, http.StatusNotFound, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(markdown))
}

func (h *handler) reportImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	path, contentType, err := h.app.Reports.Image(r.Context(), vars["version"], vars["filename"])
	if err != nil {
		writeServiceError(w, http.StatusNotFound, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, r, path)
}
