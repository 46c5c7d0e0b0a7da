package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-files/pkg/simplefiles"
)

// multipartOverhead is the body allowance on top of the file limit for
// boundaries, part headers and metadata fields.
const multipartOverhead = 1 << 20

// FilesHandler handles file upload and lookup endpoints
type FilesHandler struct {
	service simplefiles.Service
	logger  *slog.Logger
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(service simplefiles.Service, logger *slog.Logger) *FilesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilesHandler{
		service: service,
		logger:  logger,
	}
}

// Routes returns the router for files endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.UploadFile)
	r.Get("/", h.ListFiles)
	r.Get("/{id}", h.GetFile)
	return r
}

// FileListResponse is the response body for a file listing
type FileListResponse struct {
	Files  []*simplefiles.FileRecord `json:"files"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

// UploadFile ingests a multipart/form-data body with a "file" part and
// optional metadata fields.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	limit := h.service.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit(limit))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, r, &simplefiles.FileTooLargeError{Limit: limit})
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to read request body", "error", err)
		writeJSONError(w, r, http.StatusBadRequest, "failed to read request body")
		return
	}

	if strings.EqualFold(strings.TrimSpace(r.Header.Get("Content-Transfer-Encoding")), "base64") {
		decoded, err := decodeBase64(body)
		if err != nil {
			h.logger.WarnContext(r.Context(), "Invalid base64 body", "error", err)
			writeJSONError(w, r, http.StatusBadRequest, "invalid base64 body")
			return
		}
		body = decoded
	}

	req, err := h.service.ParseUpload(r.Header.Get("Content-Type"), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	record, err := h.service.UploadFile(r.Context(), *req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, record)
}

// ListFiles lists file records, newest first
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid offset")
		return
	}

	req := simplefiles.ListFilesRequest{Limit: limit, Offset: offset}
	files, err := h.service.ListFiles(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if files == nil {
		files = []*simplefiles.FileRecord{}
	}

	if req.Limit <= 0 {
		req.Limit = simplefiles.DefaultListLimit
	}
	render.JSON(w, r, FileListResponse{
		Files:  files,
		Limit:  min(req.Limit, simplefiles.MaxListLimit),
		Offset: max(req.Offset, 0),
	})
}

// GetFile returns one file record with a download URL when the blob store
// can produce one.
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Invalid file ID", "file_id", idStr, "error", err)
		writeJSONError(w, r, http.StatusBadRequest, "invalid file id")
		return
	}

	record, err := h.service.GetFile(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, record)
}

func bodyLimit(fileLimit int64) int64 {
	// base64 grows the payload by 4/3
	return fileLimit + fileLimit/3 + 4 + multipartOverhead
}

func decodeBase64(body []byte) ([]byte, error) {
	clean := bytes.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', ' ', '\t':
			return -1
		}
		return r
	}, body)
	out := make([]byte, base64.StdEncoding.DecodedLen(len(clean)))
	n, err := base64.StdEncoding.Decode(out, clean)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}
