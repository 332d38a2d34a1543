package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/sapingest/internal/grid"
	"github.com/rpattn/sapingest/internal/lock"
	"github.com/rpattn/sapingest/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxUploadBytes = 64 << 20

// Handler exposes ingestion over HTTP.
type Handler struct {
	service *Service
	logger  logrus.FieldLogger
}

// NewHTTPHandler routes the import endpoints to the service.
func NewHTTPHandler(service *Service, logger logrus.FieldLogger) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &Handler{service: service, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /imports", h.createImport)
	mux.HandleFunc("POST /imports/inspect", h.inspect)
	mux.HandleFunc("GET /imports", h.listImports)
	mux.HandleFunc("GET /imports/{id}", h.getImport)
	mux.HandleFunc("GET /imports/{id}/errors", h.listErrors)
	mux.HandleFunc("POST /imports/{id}/rows/{row}/redistribute", h.redistribute)
	return mux
}

func (h *Handler) createImport(w http.ResponseWriter, r *http.Request) {
	in, ok := readUpload(w, r)
	if !ok {
		return
	}
	defer in.close()

	summary, err := h.service.Ingest(r.Context(), Request{
		FileName:  in.name,
		SheetName: in.sheet,
		Data:      in.file,
	})
	if err != nil {
		status := errorStatus(err)
		if summary.BatchID != uuid.Nil {
			// The failed batch was recorded; return it alongside the error.
			writeJSON(w, status, map[string]any{"error": err.Error(), "summary": summary})
			return
		}
		h.writeError(w, r, status, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (h *Handler) inspect(w http.ResponseWriter, r *http.Request) {
	in, ok := readUpload(w, r)
	if !ok {
		return
	}
	defer in.close()

	limit, _ := strconv.Atoi(r.FormValue("limit"))
	result, err := h.service.Inspect(r.Context(), InspectRequest{
		FileName:  in.name,
		SheetName: in.sheet,
		Data:      in.file,
		Limit:     limit,
	})
	if err != nil {
		h.writeError(w, r, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listImports(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	batches, err := h.service.ListBatches(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

func (h *Handler) getImport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid import id: %w", err))
		return
	}
	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		h.writeError(w, r, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (h *Handler) listErrors(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid import id: %w", err))
		return
	}
	limit, offset := pagination(r)
	entries, err := h.service.ListRowErrors(r.Context(), id, limit, offset)
	if err != nil {
		h.writeError(w, r, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) redistribute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid import id: %w", err))
		return
	}
	row, err := strconv.Atoi(r.PathValue("row"))
	if err != nil || row < 1 {
		h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid row number %q", r.PathValue("row")))
		return
	}
	result, err := h.service.Redistribute(r.Context(), id, row)
	if err != nil {
		h.writeError(w, r, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type upload struct {
	name  string
	sheet string
	file  multipart.File
}

func (u upload) close() {
	_ = u.file.Close()
}

func readUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return upload{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return upload{}, false
	}
	return upload{
		name:  header.Filename,
		sheet: strings.TrimSpace(r.FormValue("sheet")),
		file:  file,
	}, true
}

func pagination(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lock.ErrNotObtained), errors.Is(err, ErrRowNotFailed):
		return http.StatusConflict
	case errors.Is(err, grid.ErrUnsupportedFormat),
		errors.Is(err, grid.ErrSheetNotFound),
		errors.Is(err, ErrInvalidLayout),
		errors.Is(err, ErrHeaderRowOutOfRange),
		errors.Is(err, ErrEmptyUpload):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
