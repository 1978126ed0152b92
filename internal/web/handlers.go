package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/customermatch/internal/core"
	"github.com/JonMunkholm/customermatch/internal/csvio"
	"github.com/JonMunkholm/customermatch/internal/logging"
	"github.com/JonMunkholm/customermatch/internal/web/templates"
)

// normalizeRequest holds the form options of a normalization request.
type normalizeRequest struct {
	Hash       bool
	FormatOnly bool `validate:"excluded_with=Hash"`
	InferZip   bool
	Region     string `validate:"omitempty,len=2,alpha"`
}

// WarningResponse is a warning in JSON responses.
type WarningResponse struct {
	Row     int    `json:"row,omitempty"`
	Field   string `json:"field,omitempty"`
	Kind    string `json:"kind"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// NormalizeResponse is the JSON body of /api/normalize.
type NormalizeResponse struct {
	RunID        string            `json:"run_id"`
	Header       []string          `json:"header"`
	Rows         [][]string        `json:"rows"`
	Warnings     []WarningResponse `json:"warnings"`
	RowsRead     int               `json:"rows_read"`
	SkippedEmpty int               `json:"skipped_empty"`
	ZipLookups   int               `json:"zip_lookups"`
	HashedCells  int               `json:"hashed_cells"`
	DurationMS   int64             `json:"duration_ms"`
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status     string                `json:"status"`
	Runs       core.RunLimiterStatus `json:"runs"`
	ZipBackend string                `json:"zip_backend"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	opts := templates.UploadOptions{
		DefaultRegion: s.cfg.Normalize.DefaultRegion,
		Hash:          s.cfg.Normalize.Hash(),
		ZipAvailable:  s.source != nil,
		MaxUploadMB:   s.cfg.Server.MaxUploadSize >> 20,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.UploadPage(opts).Render(r.Context(), w); err != nil {
		s.logger.Error("render upload page", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	backend := s.cfg.Lookup.Backend
	if s.source == nil {
		backend = "none"
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Runs:       s.limiter.Status(),
		ZipBackend: backend,
	})
}

// handleNormalize runs the pipeline over an uploaded file and returns the
// normalized CSV, or JSON when the client asks for it.
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	file, name, err := s.uploadedFile(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer file.Close()

	req, err := s.parseNormalizeRequest(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if req.InferZip && s.source == nil {
		s.respondError(w, r, core.ErrNoZipSource, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := s.limiter.Acquire(ctx); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer s.limiter.Release()

	in, err := csvio.NewReader(file)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	header, err := in.ReadHeader()
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logger := logging.WithFields(ctx, "file", name)
	p := core.NewPipeline(s.pipelineOptions(req, logger), s.source)

	if acceptsJSON(r) {
		out := &rowCollector{}
		res, err := p.Run(ctx, header, in, out)
		if err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		setRunHeaders(w, res)
		writeJSON(w, http.StatusOK, newNormalizeResponse(res, out.rows))
		return
	}

	var buf bytes.Buffer
	res, err := p.Run(ctx, header, in, csvio.NewWriter(&buf))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	setRunHeaders(w, res)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outputName(name)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Warn("write response", "error", err)
	}
}

// handleHeaders previews how the uploaded header row maps to output columns.
func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	file, _, err := s.uploadedFile(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer file.Close()

	in, err := csvio.NewReader(file)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	header, err := in.ReadHeader()
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	table := core.DefaultTranslations()
	if len(s.translations) > 0 {
		table = table.Merge(s.translations)
	}
	mapping, warnings, err := core.NewHeaderResolver(table).Resolve(header)

	preview := templates.HeaderPreview{CanInferZip: mapping.CanInferZip()}
	for i, h := range header {
		col := templates.PreviewColumn{Index: i, Header: core.CleanCell(h)}
		if f := mapping.FieldAt(i); f != core.FieldUnmapped {
			col.Field = f.String()
		}
		preview.Columns = append(preview.Columns, col)
	}
	for _, f := range mapping.Missing() {
		preview.Missing = append(preview.Missing, f.String())
	}
	for _, wr := range warnings {
		preview.Warnings = append(preview.Warnings, wr.String())
	}
	if err != nil {
		msg := core.MapError(err)
		preview.Error = err.Error()
		preview.Code = msg.Code
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.HeaderPreviewTable(preview).Render(r.Context(), w); err != nil {
			s.logger.Error("render header preview", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// uploadedFile returns the multipart "file" part and its base name.
func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, error) {
	maxSize := s.cfg.Server.MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, "", fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, maxSize)
		}
		return nil, "", fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, "", errNoFile
	}
	return file, filepath.Base(hdr.Filename), nil
}

func (s *Server) parseNormalizeRequest(r *http.Request) (normalizeRequest, error) {
	req := normalizeRequest{
		Hash:   s.cfg.Normalize.Hash(),
		Region: strings.ToUpper(strings.TrimSpace(r.FormValue("region"))),
	}

	var err error
	if req.Hash, err = formBool(r, "hash", req.Hash); err != nil {
		return req, err
	}
	if req.FormatOnly, err = formBool(r, "format_only", false); err != nil {
		return req, err
	}
	if req.InferZip, err = formBool(r, "infer_zip", s.cfg.Normalize.InferZip); err != nil {
		return req, err
	}
	if req.FormatOnly && r.FormValue("hash") == "" {
		req.Hash = false
	}

	if err := s.validate.Struct(req); err != nil {
		return req, describeValidation(err)
	}
	return req, nil
}

func (s *Server) pipelineOptions(req normalizeRequest, logger *slog.Logger) core.Options {
	region := req.Region
	if region == "" {
		region = s.cfg.Normalize.DefaultRegion
	}
	opts := core.Options{
		Translations:   s.translations,
		DefaultRegion:  region,
		Hash:           req.Hash && !req.FormatOnly,
		InferZip:       req.InferZip,
		CanonicalEmail: s.cfg.Normalize.EmailCanonical,
		BatchSize:      s.cfg.Normalize.BatchSize,
		Zip: core.ZipResolverOptions{
			Seed:        s.cfg.Lookup.Seed,
			Concurrency: s.cfg.Lookup.Concurrency,
			Timeout:     s.cfg.Lookup.Timeout,
			MaxAttempts: s.cfg.Lookup.MaxRetries,
		},
		Logger: logger,
	}
	if s.recorder != nil {
		opts.Recorder = s.recorder
	}
	return opts
}

// formBool reads a checkbox or boolean form value.
func formBool(r *http.Request, name string, def bool) (bool, error) {
	v := strings.TrimSpace(r.FormValue(name))
	switch strings.ToLower(v) {
	case "":
		return def, nil
	case "on":
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid options: %s must be true or false", name)
	}
	return b, nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid options: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "FormatOnly":
			msgs = append(msgs, "hash and format_only cannot both be set")
		case "Region":
			msgs = append(msgs, fmt.Sprintf("region %q must be a two-letter code", fe.Value()))
		default:
			msgs = append(msgs, fe.Error())
		}
	}
	return fmt.Errorf("invalid options: %s", strings.Join(msgs, "; "))
}

func setRunHeaders(w http.ResponseWriter, res *core.RunResult) {
	w.Header().Set("X-Run-ID", res.RunID)
	w.Header().Set("X-Warning-Count", strconv.Itoa(len(res.Warnings)))
}

func newNormalizeResponse(res *core.RunResult, rows [][]string) NormalizeResponse {
	if len(rows) > 0 {
		rows = rows[1:] // header
	}
	resp := NormalizeResponse{
		RunID:        res.RunID,
		Header:       res.Header,
		Rows:         rows,
		Warnings:     make([]WarningResponse, 0, len(res.Warnings)),
		RowsRead:     res.Rows,
		SkippedEmpty: res.SkippedEmpty,
		ZipLookups:   res.ZipLookups,
		HashedCells:  res.HashedCells,
		DurationMS:   res.Duration.Milliseconds(),
	}
	if resp.Rows == nil {
		resp.Rows = [][]string{}
	}
	for _, wr := range res.Warnings {
		wr2 := WarningResponse{Row: wr.Row, Kind: string(wr.Kind), Value: wr.Value, Message: wr.Message}
		if wr.Field != core.FieldUnmapped {
			wr2.Field = wr.Field.String()
		}
		resp.Warnings = append(resp.Warnings, wr2)
	}
	return resp
}

// outputName turns "contacts.csv" into "contacts_normalized.csv".
func outputName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" || base == "." {
		base = "contacts"
	}
	return base + "_normalized.csv"
}

// rowCollector is a RowWriter that keeps rows in memory.
type rowCollector struct {
	rows [][]string
}

func (c *rowCollector) Write(row []string) error {
	c.rows = append(c.rows, row)
	return nil
}

func (c *rowCollector) Flush() error { return nil }
