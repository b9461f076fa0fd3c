package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/processor"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/schema"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/service"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/textlines"
	"github.com/fieldscan/fieldscan-backend/pkg/errors"
	"github.com/fieldscan/fieldscan-backend/pkg/httputil"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
)

const maxUploadSize = 20 << 20 // 20MB

// ExtractRequest holds the plain form fields of an extraction upload
type ExtractRequest struct {
	ExtractionSchema string `form:"extraction_schema" validate:"required"`
	Label            string `form:"label" validate:"omitempty,oneof=carteira_oab tela_sistema"`
	ScreenType       string `form:"tela_sistema_tipo" validate:"omitempty,oneof=operacao consulta_cobranca detalhamento_saldos"`
	UseLLM           string `form:"use_llm" validate:"omitempty,boolean"`
}

// ExtractResponse is the flat body of a synchronous extraction
type ExtractResponse struct {
	OK               bool                `json:"ok"`
	Error            *string             `json:"error"`
	Label            domain.Category     `json:"label"`
	ExtractionSchema domain.Fields       `json:"extraction_schema"`
	PDFPath          string              `json:"pdf_path"`
	Debug            *domain.Diagnostics `json:"debug,omitempty"`
}

type failureResponse struct {
	OK      bool              `json:"ok"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// Handler handles HTTP requests for document extraction
type Handler struct {
	service         *service.Service
	reader          textlines.Reader
	defaultFallback bool
	log             *logger.Logger
}

// NewHandler creates a new document extraction handler. reader is used for
// category inference when the upload carries no label.
func NewHandler(svc *service.Service, reader textlines.Reader, defaultFallback bool, log *logger.Logger) *Handler {
	return &Handler{
		service:         svc,
		reader:          reader,
		defaultFallback: defaultFallback,
		log:             log,
	}
}

// Routes mounts the extraction endpoints on r
func (h *Handler) Routes(r chi.Router) {
	r.Post("/extract", h.Extract)
	r.Post("/extract/jobs", h.StartJob)
	r.Get("/extract/jobs/{jobId}", h.GetJob)
}

type upload struct {
	path     string
	filename string
	input    service.Input
}

func (u *upload) remove() {
	os.Remove(u.path)
}

// Extract handles POST /extract
// Accepts multipart form with:
// - file: the document (PDF or extracted text)
// - extraction_schema: "ALL" or a JSON object of key to description
// - label: carteira_oab or tela_sistema, inferred when absent
// - tela_sistema_tipo: screen sub-type, inferred from the file name when absent
// - use_llm: request the fallback retry when coverage is short
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	up, err := h.receive(w, r)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer up.remove()

	out, _ := h.service.Extract(r.Context(), up.input)

	httputil.Raw(w, http.StatusOK, ExtractResponse{
		OK:               true,
		Label:            up.input.Category,
		ExtractionSchema: out.Fields,
		PDFPath:          up.filename,
		Debug:            out.Diagnostics,
	})
}

// StartJob handles POST /extract/jobs
// Same form as Extract; answers 202 with the pending job.
func (h *Handler) StartJob(w http.ResponseWriter, r *http.Request) {
	up, err := h.receive(w, r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	job := h.service.StartJob(r.Context(), up.input, up.remove)
	h.log.Info().
		Str("job_id", job.JobID).
		Str("label", string(job.Label)).
		Str("filename", up.filename).
		Msg("extraction job accepted")

	httputil.Accepted(w, job)
}

// GetJob handles GET /extract/jobs/{jobId}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		httputil.Error(w, errors.BadRequest("missing jobId parameter"))
		return
	}

	job, ok := h.service.GetJob(jobID)
	if !ok {
		httputil.Error(w, errors.NotFound("extraction job"))
		return
	}

	httputil.JSON(w, http.StatusOK, job)
}

// receive parses and validates the upload and stores the file in a temp
// file. The caller owns the returned upload and must remove it.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, errors.BadRequest("file too large or invalid multipart form")
	}

	req := ExtractRequest{
		ExtractionSchema: strings.TrimSpace(r.FormValue("extraction_schema")),
		Label:            strings.TrimSpace(r.FormValue("label")),
		ScreenType:       strings.TrimSpace(r.FormValue("tela_sistema_tipo")),
		UseLLM:           strings.TrimSpace(r.FormValue("use_llm")),
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errors.BadRequest("missing file in request")
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		filename = "upload.pdf"
	}

	path, err := saveTemp(file, filepath.Ext(filename))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to store upload")
		return nil, errors.Internal("failed to receive file")
	}
	up := &upload{path: path, filename: filename}

	cat := domain.Category(req.Label)
	if cat == "" {
		cat = h.inferCategory(r.Context(), path, filename)
	}

	s, err := schema.Resolve(cat, req.ExtractionSchema)
	if err != nil {
		up.remove()
		return nil, err
	}

	up.input = service.Input{
		Path:        path,
		Category:    cat,
		Schema:      s,
		UseFallback: h.defaultFallback,
	}
	if req.UseLLM != "" {
		up.input.UseFallback, _ = strconv.ParseBool(req.UseLLM)
	}
	if cat == domain.CategoryScreen {
		up.input.ScreenType = domain.ScreenType(req.ScreenType)
		if up.input.ScreenType == "" {
			up.input.ScreenType = processor.InferScreenType(filename)
		}
	}
	return up, nil
}

func (h *Handler) inferCategory(ctx context.Context, path, filename string) domain.Category {
	lines, err := h.reader.Lines(ctx, path)
	if err != nil {
		h.log.Debug().Err(err).Str("filename", filename).Msg("text unavailable for label inference")
	}
	return processor.InferCategory(filename, lines)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := failureResponse{Error: "extraction failed"}

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		status = appErr.StatusCode
		body.Error = appErr.Message
		body.Details = appErr.Details
	}
	httputil.Raw(w, status, body)
}

func saveTemp(r io.Reader, ext string) (string, error) {
	if ext == "" {
		ext = ".pdf"
	}
	f, err := os.CreateTemp("", "fieldscan-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}
