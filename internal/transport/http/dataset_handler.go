package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/k-laffite/water-quality-visualizer/internal/config"
	apierrors "github.com/k-laffite/water-quality-visualizer/internal/errors"
	"github.com/k-laffite/water-quality-visualizer/internal/files"
	custommw "github.com/k-laffite/water-quality-visualizer/internal/middleware"
	"github.com/k-laffite/water-quality-visualizer/internal/services"
	"github.com/k-laffite/water-quality-visualizer/internal/validation"
	apiv1 "github.com/k-laffite/water-quality-visualizer/pkg/contracts/api/v1"
)

// DatasetHandler handles dataset HTTP requests with RFC 7807 compliance
type DatasetHandler struct {
	service      DatasetServiceInterface
	uploads      *validation.UploadValidator
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDatasetHandler creates a new dataset handler with RFC 7807 error handling
func NewDatasetHandler(service DatasetServiceInterface, uploads *validation.UploadValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DatasetHandler {
	if uploads == nil {
		uploads = validation.NewUploadValidator(0, logger)
	}
	return &DatasetHandler{
		service:      service,
		uploads:      uploads,
		validate:     validator.New(),
		logger:       logger.With(slog.String("component", "dataset_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dataset routes with proper Chi patterns
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	// Unknown API paths respond with problem JSON, not HTML
	r.NotFound(h.errorHandler.NotFound)
	r.MethodNotAllowed(h.errorHandler.MethodNotAllowed)

	r.Route("/dataset", func(r chi.Router) {
		r.Post("/", h.Upload)
		r.Get("/", h.GetDataset)
		r.Get("/columns", h.GetColumns)

		// Sub-resource routes
		r.Route("/columns/{column}", func(r chi.Router) {
			r.Use(h.ColumnCtx) // Validate column parameter
			r.Get("/stats", h.GetColumnStats)
		})

		r.Get("/summary", h.GetSummary)
		r.With(custommw.ContentTypeValidator(h.errorHandler, "application/json")).Post("/filter", h.FilterRows)
		r.With(custommw.ContentTypeValidator(h.errorHandler, "application/json")).Post("/chart", h.BuildChart)

		// Download routes
		r.Get("/export", h.ExportDataset)
		r.Get("/export/stats", h.ExportStats)
	})

	r.Route("/samples", func(r chi.Router) {
		r.Get("/", h.ListSamples)
		r.Post("/{name}/load", h.LoadSample)
	})

	return r
}

// ColumnCtx middleware validates the column parameter
func (h *DatasetHandler) ColumnCtx(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		column := chi.URLParam(r, "column")
		if strings.TrimSpace(column) == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("column", "Column name is required"))
			return
		}

		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// Upload handles POST /api/dataset. The endpoint accepts three bodies:
// multipart form data with a "file" part, a JSON UploadRequest, or raw
// CSV text (anything else, typically text/csv).
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	rid := custommw.GetReqID(r.Context())

	// Cap the body before touching it; the exact dataset limit is
	// enforced again on the decoded content.
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+config.UploadEnvelopeSlack)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	h.logger.InfoContext(r.Context(), "dataset upload requested",
		slog.String("request_id", rid),
		slog.String("media_type", mediaType),
		slog.Int64("content_length", r.ContentLength),
	)

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		h.uploadMultipart(w, r)
	case mediaType == "application/json":
		h.uploadJSON(w, r)
	default:
		h.uploadRaw(w, r)
	}
}

// uploadMultipart reads the "file" part and dispatches on its extension.
func (h *DatasetHandler) uploadMultipart(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			h.handleTooLarge(w, r)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "A multipart field named 'file' is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			h.handleTooLarge(w, r)
			return
		}
		h.errorHandler.HandleError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	// The multipart path is the one that carries a real filename, so the
	// extension whitelist applies here.
	if err := h.uploads.ValidateFilename(header.Filename); err != nil {
		h.handleLoadError(w, r, header.Filename, err)
		return
	}

	var meta *services.Meta
	if files.IsWorkbook(header.Filename) {
		meta, err = h.service.LoadWorkbook(r.Context(), header.Filename, data)
	} else {
		meta, err = h.service.Load(r.Context(), header.Filename, string(data))
	}
	if err != nil {
		h.handleLoadError(w, r, header.Filename, err)
		return
	}

	h.respondLoaded(w, r, meta)
}

// uploadJSON decodes an UploadRequest body.
func (h *DatasetHandler) uploadJSON(w http.ResponseWriter, r *http.Request) {
	var in apiv1.UploadRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		if isBodyTooLarge(err) {
			h.handleTooLarge(w, r)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.validate.Struct(in); err != nil {
		h.invalidRequest(w, r, "Upload request failed validation", err)
		return
	}

	meta, err := h.service.Load(r.Context(), in.Name, in.Content)
	if err != nil {
		h.handleLoadError(w, r, in.Name, err)
		return
	}

	h.respondLoaded(w, r, meta)
}

// uploadRaw treats the body as CSV text; the optional name query
// parameter labels the dataset.
func (h *DatasetHandler) uploadRaw(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		if isBodyTooLarge(err) {
			h.handleTooLarge(w, r)
			return
		}
		h.errorHandler.HandleError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	name := r.URL.Query().Get("name")
	meta, err := h.service.Load(r.Context(), name, string(body))
	if err != nil {
		h.handleLoadError(w, r, name, err)
		return
	}

	h.respondLoaded(w, r, meta)
}

// GetDataset handles GET /api/dataset with RFC 7807 errors
func (h *DatasetHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	meta, err := h.service.Meta(r.Context())
	if err != nil {
		h.handleDatasetError(w, r, err, "")
		return
	}

	// The content fingerprint doubles as the ETag.
	etag := `"` + meta.Fingerprint + `"`
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   meta,
	})
}

// GetColumns handles GET /api/dataset/columns with RFC 7807 errors
func (h *DatasetHandler) GetColumns(w http.ResponseWriter, r *http.Request) {
	columns, err := h.service.Columns(r.Context())
	if err != nil {
		h.handleDatasetError(w, r, err, "")
		return
	}

	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   columns,
		"count":  len(columns.Columns),
	})
}

// GetColumnStats handles GET /api/dataset/columns/{column}/stats with RFC 7807 errors
func (h *DatasetHandler) GetColumnStats(w http.ResponseWriter, r *http.Request) {
	rid := custommw.GetReqID(r.Context())
	column := chi.URLParam(r, "column")

	h.logger.InfoContext(r.Context(), "computing column statistics",
		slog.String("request_id", rid),
		slog.String("column", column),
	)

	stats, err := h.service.Stats(r.Context(), column)
	if err != nil {
		h.handleDatasetError(w, r, err, column)
		return
	}

	custommw.RecordStatsMetrics(r.Context(), column)

	render.JSON(w, r, map[string]any{
		"status": "success",
		"column": column,
		"data":   stats,
	})
}

// GetSummary handles GET /api/dataset/summary with RFC 7807 errors
func (h *DatasetHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.Summary(r.Context())
	if err != nil {
		h.handleDatasetError(w, r, err, "")
		return
	}

	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   reports,
		"count":  len(reports),
	})
}

// FilterRows handles POST /api/dataset/filter with RFC 7807 errors
func (h *DatasetHandler) FilterRows(w http.ResponseWriter, r *http.Request) {
	rid := custommw.GetReqID(r.Context())

	var in apiv1.FilterRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.validate.Struct(in); err != nil {
		h.invalidRequest(w, r, "Filter request failed validation", err)
		return
	}

	h.logger.InfoContext(r.Context(), "filtering rows",
		slog.String("request_id", rid),
		slog.String("column", in.Column),
		slog.Float64("min", in.Min),
		slog.Float64("max", in.Max),
	)

	result, err := h.service.Filter(r.Context(), in.Column, in.Min, in.Max)
	if err != nil {
		h.handleDatasetError(w, r, err, in.Column)
		return
	}

	custommw.RecordFilterMetrics(r.Context(), in.Column, result.Matched)

	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   result,
	})
}

// BuildChart handles POST /api/dataset/chart with RFC 7807 errors
func (h *DatasetHandler) BuildChart(w http.ResponseWriter, r *http.Request) {
	rid := custommw.GetReqID(r.Context())

	var in apiv1.ChartRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.validate.Struct(in); err != nil {
		h.invalidRequest(w, r, "Chart request failed validation", err)
		return
	}

	h.logger.InfoContext(r.Context(), "building chart",
		slog.String("request_id", rid),
		slog.String("type", in.Type),
		slog.String("x", in.X),
		slog.String("y", in.Y),
		slog.Int("bins", in.Bins),
	)

	payload, err := h.service.Chart(r.Context(), in)
	if err != nil {
		if errors.Is(err, services.ErrInvalidChartType) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("type", fmt.Sprintf("Unsupported chart type %q", in.Type)))
			return
		}
		h.handleDatasetError(w, r, err, firstColumn(in))
		return
	}

	custommw.RecordChartMetrics(r.Context(), in.Type, chartPoints(payload))

	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   payload,
	})
}

// ListSamples handles GET /api/samples with RFC 7807 errors
func (h *DatasetHandler) ListSamples(w http.ResponseWriter, r *http.Request) {
	samples, err := h.service.ListSamples(r.Context())
	if err != nil {
		h.handleDatasetError(w, r, err, "")
		return
	}

	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   samples,
		"count":  len(samples),
	})
}

// LoadSample handles POST /api/samples/{name}/load with RFC 7807 errors
func (h *DatasetHandler) LoadSample(w http.ResponseWriter, r *http.Request) {
	rid := custommw.GetReqID(r.Context())
	name := chi.URLParam(r, "name")

	h.logger.InfoContext(r.Context(), "loading sample dataset",
		slog.String("request_id", rid),
		slog.String("name", name),
	)

	meta, err := h.service.LoadSample(r.Context(), name)
	if err != nil {
		if errors.Is(err, services.ErrSampleNotFound) {
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(http.StatusNotFound,
				"SAMPLE_NOT_FOUND", fmt.Sprintf("Sample '%s' not found", name),
				map[string]any{"name": name}))
			return
		}
		h.handleLoadError(w, r, name, err)
		return
	}

	h.respondLoaded(w, r, meta)
}

// ExportDataset handles GET /api/dataset/export with RFC 7807 errors
func (h *DatasetHandler) ExportDataset(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "dataset", func(sb *strings.Builder) (*services.Meta, error) {
		return h.service.ExportCSV(r.Context(), sb)
	}, func(name string) string {
		return downloadName(name, "dataset.csv")
	})
}

// ExportStats handles GET /api/dataset/export/stats with RFC 7807 errors
func (h *DatasetHandler) ExportStats(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "stats", func(sb *strings.Builder) (*services.Meta, error) {
		return h.service.ExportStatsCSV(r.Context(), sb)
	}, func(name string) string {
		base := downloadName(name, "dataset.csv")
		return strings.TrimSuffix(base, filepath.Ext(base)) + "-stats.csv"
	})
}

// export buffers one CSV download so headers can carry the exact length
// and the error path never races a half-written body.
func (h *DatasetHandler) export(w http.ResponseWriter, r *http.Request, target string, write func(*strings.Builder) (*services.Meta, error), filename func(string) string) {
	rid := custommw.GetReqID(r.Context())

	var sb strings.Builder
	meta, err := write(&sb)
	if err != nil {
		h.handleDatasetError(w, r, err, "")
		return
	}

	h.logger.InfoContext(r.Context(), "exporting dataset",
		slog.String("request_id", rid),
		slog.String("target", target),
		slog.String("name", meta.Name),
		slog.Int("bytes", sb.Len()),
	)

	custommw.RecordExportMetrics(r.Context(), target, meta.Rows)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename(meta.Name)))
	w.Header().Set("Content-Length", strconv.Itoa(sb.Len()))
	w.Header().Set("ETag", `"`+meta.Fingerprint+`"`)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, sb.String())
}

// respondLoaded renders the 201 envelope shared by every load path.
func (h *DatasetHandler) respondLoaded(w http.ResponseWriter, r *http.Request, meta *services.Meta) {
	w.Header().Set("ETag", `"`+meta.Fingerprint+`"`)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   meta,
	})
}

// handleLoadError maps a failed load to its problem response. Anything
// the parser or validator refused is a 4xx rejection, not a server
// fault.
func (h *DatasetHandler) handleLoadError(w http.ResponseWriter, r *http.Request, name string, err error) {
	rid := custommw.GetReqID(r.Context())

	h.logger.WarnContext(r.Context(), "dataset load failed",
		slog.String("request_id", rid),
		slog.String("name", name),
		slog.String("error", err.Error()))

	switch {
	case errors.Is(err, validation.ErrFileTooLarge):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(http.StatusRequestEntityTooLarge,
			"PAYLOAD_TOO_LARGE", "The uploaded file exceeds the size limit",
			map[string]any{"limit_bytes": h.uploads.MaxBytes()}))

	case errors.Is(err, validation.ErrUnsupportedExtension):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(http.StatusUnsupportedMediaType,
			"UNSUPPORTED_FILE_TYPE", "Only .csv and .xlsx files are accepted",
			map[string]any{"filename": name}))

	default:
		// Empty input, missing headers, zero data rows, broken
		// encodings and unreadable workbooks all land here: the client
		// sent something that cannot become a dataset.
		render.Render(w, r, apierrors.NewDatasetRejectedError(err.Error(), nil, rid))
	}
}

// handleDatasetError maps the shared read-path sentinels.
func (h *DatasetHandler) handleDatasetError(w http.ResponseWriter, r *http.Request, err error, column string) {
	rid := custommw.GetReqID(r.Context())

	switch {
	case errors.Is(err, services.ErrNoDataset):
		render.Render(w, r, apierrors.NewDatasetNotLoadedError(rid))

	case errors.Is(err, services.ErrColumnNotFound):
		render.Render(w, r, apierrors.NewColumnNotFoundError(column, h.availableColumns(r), rid))

	case errors.Is(err, services.ErrNoNumericData):
		render.Render(w, r, apierrors.NewNoNumericDataError(column, rid))

	case errors.Is(err, services.ErrInvalidInput):
		h.errorHandler.HandleError(w, r, apierrors.New(http.StatusBadRequest,
			"INVALID_PARAMETER", err.Error()))

	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

// invalidRequest renders the VALIDATION_ERROR problem for a payload
// that failed its struct tag checks.
func (h *DatasetHandler) invalidRequest(w http.ResponseWriter, r *http.Request, title string, err error) {
	h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
		http.StatusBadRequest, "VALIDATION_ERROR", title, validationDetails(err)))
}

// availableColumns fetches the column list for not-found hints; a miss
// only costs the hint.
func (h *DatasetHandler) availableColumns(r *http.Request) []string {
	columns, err := h.service.Columns(r.Context())
	if err != nil {
		return nil
	}
	return columns.Columns
}

func (h *DatasetHandler) handleTooLarge(w http.ResponseWriter, r *http.Request) {
	h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(http.StatusRequestEntityTooLarge,
		"PAYLOAD_TOO_LARGE", "The request body exceeds the upload limit",
		map[string]any{"limit_bytes": h.uploads.MaxBytes()}))
}

// isBodyTooLarge reports whether a read failed on the MaxBytesReader cap.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// validationDetails flattens validator errors into a field → constraint map.
func validationDetails(err error) map[string]any {
	details := make(map[string]any)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
		return details
	}

	details["error"] = err.Error()
	return details
}

// chartPoints reports how many observations back a chart payload.
func chartPoints(p *services.ChartPayload) int {
	switch {
	case p.Histogram != nil:
		return p.Histogram.Count
	case p.Scatter != nil:
		return len(p.Scatter.Points)
	case p.Line != nil:
		return len(p.Line.Values)
	case p.Box != nil:
		return p.Box.Count
	default:
		return 0
	}
}

// firstColumn picks the column a chart error most likely refers to.
func firstColumn(req apiv1.ChartRequest) string {
	if req.X != "" {
		return req.X
	}
	return req.Y
}

// downloadName sanitizes a display name into a safe attachment filename.
func downloadName(name, fallback string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}
