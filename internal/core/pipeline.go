package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Phase is the state of a normalization run.
type Phase string

const (
	PhaseStarting       Phase = "starting"
	PhaseHeaderResolved Phase = "header_resolved"
	PhaseNormalizing    Phase = "normalizing"
	PhaseZipInference   Phase = "zip_inference"
	PhaseHashing        Phase = "hashing"
	PhaseDone           Phase = "done"
	PhaseAborted        Phase = "aborted"
	PhaseCancelled      Phase = "cancelled"
)

// DefaultBatchSize is the number of rows read ahead so their zip lookups can
// run concurrently.
const DefaultBatchSize = 256

// RowReader yields raw CSV rows. Read returns io.EOF after the last row.
type RowReader interface {
	Read() ([]string, error)
}

// RowWriter receives output rows in input order.
type RowWriter interface {
	Write(row []string) error
	Flush() error
}

// Options configures a Pipeline.
type Options struct {
	// Translations extends the built-in header table.
	Translations TranslationTable

	// DefaultRegion is used to parse phones when a row's country is unresolved.
	DefaultRegion string

	// Hash replaces every non-empty output value with its SHA-256 digest.
	Hash bool

	// InferZip looks up missing zips from city and state.
	InferZip bool

	// CanonicalEmail applies provider mailbox rules to emails.
	CanonicalEmail bool

	// BatchSize bounds the rows held in memory between reading and writing.
	BatchSize int

	Zip ZipResolverOptions

	Logger   *slog.Logger
	Recorder Recorder

	// OnProgress, if set, is called after each batch is written.
	OnProgress func(RunProgress)
}

// RunProgress reports how far a run has got.
type RunProgress struct {
	RunID    string
	Phase    Phase
	Line     int // last CSV line read
	Emitted  int
	Warnings int
}

// RunResult summarizes a finished or aborted run.
type RunResult struct {
	RunID        string
	Phase        Phase
	Mapping      HeaderMapping
	Header       []string // output header
	Rows         int      // non-empty data rows read
	Emitted      int
	SkippedEmpty int
	HashedCells  int
	ZipLookups   int // distinct keys resolved
	Warnings     []Warning
	Duration     time.Duration
	HashDuration time.Duration
}

// Pipeline normalizes CSV rows into the fixed output schema. A Pipeline is
// safe for concurrent use; every Run gets its own zip cache.
type Pipeline struct {
	opts       Options
	headers    *HeaderResolver
	normalizer *Normalizer
	source     ZipSource
	logger     *slog.Logger
	recorder   Recorder
}

// NewPipeline creates a pipeline. source may be nil when zip inference is
// never requested.
func NewPipeline(opts Options, source ZipSource) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = NopRecorder{}
	}
	opts.Zip.Recorder = recorder

	table := DefaultTranslations()
	if len(opts.Translations) > 0 {
		table = table.Merge(opts.Translations)
	}

	return &Pipeline{
		opts:    opts,
		headers: NewHeaderResolver(table),
		normalizer: NewNormalizer(NormalizerOptions{
			DefaultRegion:  opts.DefaultRegion,
			CanonicalEmail: opts.CanonicalEmail,
		}),
		source:   source,
		logger:   logger,
		recorder: recorder,
	}
}

// ResolveHeader maps a header row without processing any data.
func (p *Pipeline) ResolveHeader(header []string) (HeaderMapping, []Warning, error) {
	return p.headers.Resolve(header)
}

// Preflight resolves header and reports conditions a caller may want to act
// on before Run. Besides the fatal header error it returns *MissingZipError
// when zips could be inferred but inference is off.
func (p *Pipeline) Preflight(header []string) (HeaderMapping, error) {
	m, _, err := p.headers.Resolve(header)
	if err != nil {
		return m, err
	}
	if m.NeedsZipInference() && !p.opts.InferZip {
		return m, &MissingZipError{Mapping: m}
	}
	return m, nil
}

// pendingRow is a normalized row waiting for zip inference and output.
type pendingRow struct {
	line   int
	raw    Record
	result Result[NormalizedRecord]
	key    PlaceKey
}

// Run reads the data rows of one file from in and writes normalized rows to
// out, header first. header is the already read header row.
//
// Only header resolution can abort a run. Per-field problems become
// warnings on the result. If ctx is cancelled the run stops between rows;
// rows written so far are flushed and complete.
func (p *Pipeline) Run(ctx context.Context, header []string, in RowReader, out RowWriter) (*RunResult, error) {
	start := time.Now()
	res := &RunResult{RunID: uuid.NewString(), Phase: PhaseStarting}
	logger := p.logger.With("run_id", res.RunID)

	defer func() {
		res.Duration = time.Since(start)
		p.recorder.RunFinished(res.Phase, res.Duration)
	}()

	mapping, warnings, err := p.headers.Resolve(header)
	res.Mapping = mapping
	for _, w := range warnings {
		p.warn(logger, res, w)
	}
	if err != nil {
		res.Phase = PhaseAborted
		logger.Error("header resolution failed", "error", err)
		return res, err
	}

	var zips *ZipResolver
	switch {
	case !mapping.CanInferZip() || !p.opts.InferZip:
		if !mapping.Has(Zip) && mapping.CanInferZip() {
			p.warn(logger, res, Warning{
				Field:   Zip,
				Kind:    WarnMissingColumn,
				Message: "no zip column and zip inference is off, values will be empty",
			})
		}
	case p.source == nil:
		res.Phase = PhaseAborted
		return res, ErrNoZipSource
	default:
		zips = NewZipResolver(p.source, p.opts.Zip)
	}

	res.Header = OutputHeader(mapping.Has(MobileDeviceID))
	if err := out.Write(res.Header); err != nil {
		res.Phase = PhaseAborted
		return res, fmt.Errorf("write header: %w", err)
	}
	res.Phase = PhaseHeaderResolved
	logger.Info("header resolved",
		"columns", mapping.Len(),
		"infer_zip", zips != nil,
		"hash", p.opts.Hash,
	)

	ambiguous := make(map[PlaceKey]bool)
	batch := make([]pendingRow, 0, p.opts.BatchSize)
	line := 1 // header is line 1

	for eof := false; !eof; {
		batch = batch[:0]
		res.Phase = PhaseNormalizing

		for len(batch) < p.opts.BatchSize {
			row, err := in.Read()
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			line++
			if err != nil {
				res.Phase = PhaseAborted
				_ = out.Flush()
				return res, fmt.Errorf("read line %d: %w", line, err)
			}
			if isEmptyRow(row) {
				res.SkippedEmpty++
				continue
			}
			res.Rows++

			rec := mapping.Record(row)
			pr := pendingRow{line: line, raw: rec, result: p.normalizer.Normalize(rec, line)}
			if zips != nil && pr.result.Value.Get(Zip) == "" {
				pr.key = p.normalizer.PlaceKey(rec, pr.result.Value.Get(Country))
			}
			batch = append(batch, pr)
		}

		if zips != nil {
			res.Phase = PhaseZipInference
			keys := make([]PlaceKey, 0, len(batch))
			for _, pr := range batch {
				if !pr.key.Empty() {
					keys = append(keys, pr.key)
				}
			}
			if err := zips.Prefetch(ctx, keys); err != nil && ctx.Err() == nil {
				logger.Warn("zip prefetch failed", "error", err)
			}
		}

		for _, pr := range batch {
			if err := ctx.Err(); err != nil {
				res.Phase = PhaseCancelled
				if ferr := out.Flush(); ferr != nil {
					return res, fmt.Errorf("flush output: %w", ferr)
				}
				logger.Warn("run cancelled", "line", pr.line, "emitted", res.Emitted)
				return res, fmt.Errorf("run cancelled at line %d: %w", pr.line, err)
			}

			row, err := p.finishRow(ctx, logger, res, zips, ambiguous, pr)
			if err != nil {
				res.Phase = PhaseAborted
				return res, err
			}
			if err := out.Write(row); err != nil {
				res.Phase = PhaseAborted
				return res, fmt.Errorf("write line %d: %w", pr.line, err)
			}
			res.Emitted++
			p.recorder.RowProcessed()
		}

		if err := out.Flush(); err != nil {
			res.Phase = PhaseAborted
			return res, fmt.Errorf("flush output: %w", err)
		}
		if p.opts.OnProgress != nil {
			p.opts.OnProgress(RunProgress{
				RunID:    res.RunID,
				Phase:    res.Phase,
				Line:     line,
				Emitted:  res.Emitted,
				Warnings: len(res.Warnings),
			})
		}
	}

	if zips != nil {
		res.ZipLookups = zips.Cache().Len()
	}
	res.Phase = PhaseDone
	p.recorder.HashedCells(res.HashedCells)
	logger.Info("run complete",
		"rows", res.Rows,
		"emitted", res.Emitted,
		"warnings", len(res.Warnings),
		"zip_lookups", res.ZipLookups,
		"hashed_cells", res.HashedCells,
		"hash_duration", res.HashDuration,
		"duration", time.Since(start),
	)
	return res, nil
}

// finishRow infers the zip if needed, hashes if enabled and returns the
// output row.
func (p *Pipeline) finishRow(ctx context.Context, logger *slog.Logger, res *RunResult, zips *ZipResolver, ambiguous map[PlaceKey]bool, pr pendingRow) ([]string, error) {
	for _, w := range pr.result.Warnings {
		p.warn(logger, res, w)
	}
	nr := pr.result.Value

	if zips != nil && nr.Get(Zip) == "" {
		if pr.key.Empty() {
			p.warn(logger, res, Warning{
				Row:     pr.line,
				Field:   Zip,
				Kind:    WarnZipNotFound,
				Message: "city or state is empty, cannot infer zip",
			})
		} else {
			o := zips.Resolve(ctx, pr.key)
			switch o.Status {
			case ZipFound:
				nr = nr.withValue(Zip, o.Zip)
				if o.Ambiguous() && !ambiguous[pr.key] {
					ambiguous[pr.key] = true
					p.warn(logger, res, Warning{
						Row:   pr.line,
						Field: Zip,
						Kind:  WarnZipAmbiguous,
						Value: o.Zip,
						Message: fmt.Sprintf("%d zip codes match %s, %s; picked %s for all rows of this place",
							o.Candidates, pr.raw.Get(City), pr.raw.Get(State), o.Zip),
					})
				}
			case ZipNotFound:
				p.warn(logger, res, Warning{
					Row:     pr.line,
					Field:   Zip,
					Kind:    WarnZipNotFound,
					Value:   pr.key.String(),
					Message: fmt.Sprintf("no zip code found for %s, %s", pr.raw.Get(City), pr.raw.Get(State)),
				})
			case ZipLookupFailed:
				msg := "zip lookup failed"
				if o.Err != nil {
					msg += ": " + o.Err.Error()
				}
				p.warn(logger, res, Warning{
					Row:     pr.line,
					Field:   Zip,
					Kind:    WarnZipLookupFailed,
					Value:   pr.key.String(),
					Message: msg,
				})
			}
		}
	}

	if !p.opts.Hash {
		return nr.Row(), nil
	}

	res.Phase = PhaseHashing
	hashStart := time.Now()
	h, err := HashRecord(nr)
	if err != nil {
		return nil, fmt.Errorf("hash line %d: %w", pr.line, err)
	}
	res.HashDuration += time.Since(hashStart)
	res.HashedCells += h.hashedCount()
	return h.Row(), nil
}

func (p *Pipeline) warn(logger *slog.Logger, res *RunResult, w Warning) {
	res.Warnings = append(res.Warnings, w)
	p.recorder.Warning(w.Kind)
	logger.Warn(w.Message,
		"line", w.Row,
		"field", w.Field.String(),
		"kind", string(w.Kind),
		"value", w.Value,
	)
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
