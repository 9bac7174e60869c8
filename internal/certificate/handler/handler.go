package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"certhub/internal/certificate/models"
	"certhub/internal/certificate/spreadsheet"
	dErrors "certhub/pkg/domain-errors"
	"certhub/pkg/platform/httputil"
	"certhub/pkg/platform/sentinel"
	"certhub/pkg/requestcontext"
)

// UploadField is the multipart field carrying the spreadsheet.
const UploadField = "file"

const (
	msgNotFound  = "no matching certificate records found"
	msgNoFile    = "no file received"
	maxFormParts = 8 << 20
)

// Service defines the certificate operations the handler needs.
type Service interface {
	Lookup(ctx context.Context, key string) ([]models.AggregatedRecord, error)
	Import(ctx context.Context, rows []models.RawRow) (models.ImportSummary, error)
}

// Handler wires the search and upload endpoints to the certificate service.
type Handler struct {
	service        Service
	uploadDir      string
	maxUploadBytes int64
	logger         *zerolog.Logger
}

func New(service Service, uploadDir string, maxUploadBytes int64, logger *zerolog.Logger) *Handler {
	return &Handler{
		service:        service,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Register mounts certificate endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/search", h.HandleSearch)
	r.Post("/api/upload", h.HandleUpload)
}

// HandleSearch handles GET /api/search?q=. A miss is a normal 200 response with
// success=false.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query().Get("q")

	records, err := h.service.Lookup(ctx, q)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		httputil.WriteJSON(w, http.StatusOK, httputil.Envelope{Success: false, Message: msgNotFound})
		return
	case err != nil:
		h.logFailure(ctx, err, "certificate lookup failed")
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Envelope{Success: true, Data: records})
}

// HandleUpload handles POST /api/upload. The upload is written to the upload
// directory for parsing and removed before the response on every path.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(min(h.maxUploadBytes, maxFormParts)); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeTooLarge,
				fmt.Sprintf("file exceeds the %d byte upload limit", h.maxUploadBytes)))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, msgNoFile))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, msgNoFile))
		return
	}
	defer file.Close()

	if _, err := spreadsheet.FormatFor(header.Filename); err != nil {
		httputil.WriteError(w, err)
		return
	}

	path, err := h.store(file, header.Filename, requestcontext.Now(ctx).UnixMilli())
	if err != nil {
		h.logger.Error().Err(err).Str("request_id", requestID).Msg("saving upload failed")
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "save upload"))
		return
	}
	defer h.remove(path, requestID)

	sheet, err := spreadsheet.ReadFile(path)
	if err != nil {
		h.logFailure(ctx, err, "spreadsheet unreadable")
		httputil.WriteError(w, err)
		return
	}
	if len(sheet.Ignored) > 0 {
		h.logger.Debug().Str("request_id", requestID).Strs("columns", sheet.Ignored).Msg("ignoring unknown columns")
	}

	summary, err := h.service.Import(ctx, sheet.Rows)
	if err != nil {
		h.logFailure(ctx, err, "import failed")
		httputil.WriteError(w, err)
		return
	}

	h.logger.Info().
		Str("request_id", requestID).
		Str("file", header.Filename).
		Int("processed", summary.Processed).
		Int("inserted", summary.Inserted).
		Int("skipped", summary.Skipped).
		Msg("upload imported")
	httputil.WriteSuccess(w, fmt.Sprintf("processed %d rows", summary.Processed), summary)
}

// store copies the upload to <uploadDir>/<unix-ms>-<basename>.
func (h *Handler) store(src io.Reader, filename string, stamp int64) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	// Same-name uploads within one millisecond must not collide.
	name := fmt.Sprintf("%d-%s-%s", stamp, uuid.NewString()[:8], sanitizeFilename(filename))
	path := filepath.Join(h.uploadDir, name)

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

func (h *Handler) remove(path, requestID string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Warn().Err(err).Str("request_id", requestID).Str("path", path).Msg("removing upload failed")
	}
}

func (h *Handler) logFailure(ctx context.Context, err error, msg string) {
	evt := h.logger.Error()
	if errors.Is(err, sentinel.ErrUnavailable) ||
		dErrors.HasCode(err, dErrors.CodeValidation) ||
		dErrors.HasCode(err, dErrors.CodeBadRequest) {
		evt = h.logger.Warn()
	}
	evt.Err(err).Str("request_id", requestcontext.RequestID(ctx)).Msg(msg)
}
