package export

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rpattn/sapingest/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Handler serves failed-row downloads.
type Handler struct {
	service *Service
	logger  logrus.FieldLogger
}

// NewHTTPHandler serves GET /imports/{id}/failed-rows.
func NewHTTPHandler(service *Service, logger logrus.FieldLogger) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &Handler{service: service, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /imports/{id}/failed-rows", h.handleDownload)
	return mux
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid import id: %v", err), http.StatusBadRequest)
		return
	}

	// The batch is looked up first so a missing batch is a 404 rather than
	// a truncated download.
	batch, err := h.service.batches.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.WithError(err).WithField("batch_id", id).Error("failed to load batch for export")
		http.Error(w, "failed to load batch", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", FileName(batch)))
	if _, err := h.service.WriteFailedRows(r.Context(), id, w); err != nil {
		h.logger.WithError(err).WithField("batch_id", id).Error("failed rows export aborted")
	}
}
