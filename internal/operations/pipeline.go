package operations

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"pricepipe/internal/dataprocessing"
	apperrors "pricepipe/internal/errors"
	"pricepipe/internal/infrastructure"
	"pricepipe/internal/wait"
)

// Config holds the pipeline settings that are not owned by a collaborator.
type Config struct {
	DownloadDir string
	TableName   string
}

// RunResult is the outcome of one run. FailedStage and Err are set only
// when the run ends in Failed.
type RunResult struct {
	ID          string
	Success     bool
	State       State
	FailedStage State
	Err         error
	Artifact    string
	RowsRead    int
	RowsLoaded  int64
	Steps       []StepState
	Transitions []Transition
	Duration    time.Duration
}

// ExitCode maps the result onto the process exit status.
func (r *RunResult) ExitCode() int {
	if r.Success {
		return 0
	}
	return 1
}

// Pipeline runs crawl, locate, transform and load in order and stops at the
// first failure.
type Pipeline struct {
	crawler     Crawler
	locator     ArtifactLocator
	reader      TableReader
	transformer Transformer
	loader      Loader
	cfg         Config

	tracer      *PipelineTracer
	clock       wait.Clock
	preview     io.Writer
	previewRows int
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithTracer(t *PipelineTracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

func WithClock(c wait.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithPreview prints the first n transformed rows to w before loading.
func WithPreview(w io.Writer, n int) Option {
	return func(p *Pipeline) {
		p.preview = w
		p.previewRows = n
	}
}

func New(c Crawler, locator ArtifactLocator, reader TableReader, transformer Transformer, loader Loader,
	cfg Config, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		crawler:     c,
		locator:     locator,
		reader:      reader,
		transformer: transformer,
		loader:      loader,
		cfg:         cfg,
		clock:       wait.RealClock(),
		logger:      infrastructure.WithComponent(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the full pipeline starting with the crawl.
func (p *Pipeline) Run(ctx context.Context) *RunResult {
	return p.run(ctx, StateCrawling, "")
}

// RunFromFile skips the crawl and processes file, or the newest export in
// the download directory when file is empty.
func (p *Pipeline) RunFromFile(ctx context.Context, file string) *RunResult {
	return p.run(ctx, StateLocating, file)
}

// run carries the data handed between stages. No live handle (browser,
// connection) crosses a stage boundary.
type run struct {
	file  string
	table *dataprocessing.CanonicalTable
}

func (p *Pipeline) run(ctx context.Context, initial State, file string) *RunResult {
	ctx = infrastructure.EnsureTraceID(ctx)
	result := &RunResult{ID: infrastructure.GetTraceID(ctx)}
	started := p.clock.Now()

	sm, err := NewStateMachine(initial, p.clock)
	if err != nil {
		result.State, result.FailedStage, result.Err = StateFailed, initial, err
		return result
	}

	ctx, span := p.tracer.StartRun(ctx, result.ID, initial)
	p.logger.InfoContext(ctx, "Pipeline started",
		slog.String("initial_state", string(initial)),
		slog.String("otel_trace_id", infrastructure.TraceIDFromContext(ctx)))

	state := &run{file: file}
	stages := []struct {
		stage State
		next  State
		fn    func(context.Context, *StepState, *run, *RunResult) error
	}{
		{StateCrawling, StateLocating, p.crawl},
		{StateLocating, StateTransforming, p.locate},
		{StateTransforming, StateLoading, p.transform},
		{StateLoading, StateDone, p.load},
	}
	for _, s := range stages {
		if sm.Current() != s.stage {
			continue
		}
		if !p.step(ctx, sm, result, s.next, func(ctx context.Context, step *StepState) error {
			return s.fn(ctx, step, state, result)
		}) {
			break
		}
	}

	result.State = sm.Current()
	result.Success = result.State == StateDone
	result.Transitions = sm.History()
	result.Duration = p.clock.Now().Sub(started)
	p.tracer.EndRun(ctx, span, result)

	if result.Success {
		p.logger.InfoContext(ctx, "Pipeline finished",
			slog.String("artifact", result.Artifact),
			slog.Int64("rows_loaded", result.RowsLoaded),
			slog.Duration("duration", result.Duration))
	} else {
		p.logger.ErrorContext(ctx, "Pipeline failed",
			slog.String("stage", string(result.FailedStage)),
			slog.String("error_type", string(apperrors.TypeOf(result.Err))),
			slog.String("error", errorString(result.Err)),
			slog.Duration("duration", result.Duration))
	}
	return result
}

// step runs fn as the current stage and moves the machine to next on
// success or to Failed otherwise. It reports whether the run may continue.
func (p *Pipeline) step(ctx context.Context, sm *StateMachine, result *RunResult, next State,
	fn func(context.Context, *StepState) error) bool {
	stage := sm.Current()
	step := NewStepState(stage, p.clock.Now())
	ctx, span := p.tracer.StartStage(ctx, stage)
	p.logger.InfoContext(ctx, "Stage started", slog.String("stage", string(stage)))

	err := fn(ctx, step)
	if err == nil {
		err = sm.Transition(next)
	}

	now := p.clock.Now()
	if err != nil {
		step.Fail(now, err)
		result.FailedStage = stage
		result.Err = NewStageError(stage, err)
		if ferr := sm.Fail(); ferr != nil {
			p.logger.ErrorContext(ctx, "Could not mark run failed", slog.String("error", ferr.Error()))
		}
	} else {
		step.Complete(now)
		p.logger.InfoContext(ctx, "Stage completed",
			slog.String("stage", string(stage)),
			slog.Duration("duration", step.Duration()))
	}

	p.tracer.EndStage(ctx, span, step)
	result.Steps = append(result.Steps, *step)
	return err == nil
}

func (p *Pipeline) crawl(ctx context.Context, step *StepState, _ *run, result *RunResult) error {
	res, err := p.crawler.Run(ctx)
	if err != nil {
		return err
	}
	result.Artifact = res.Artifact.Path
	step.Metadata["artifact"] = res.Artifact.Name
	step.Metadata["range"] = res.Range.String()
	step.Metadata["download_wait"] = res.DownloadWait.String()
	p.tracer.RecordDownloadWait(ctx, res.DownloadWait)
	infrastructure.AddSpanEvent(ctx, "export.downloaded", map[string]interface{}{
		"artifact":              res.Artifact.Name,
		"download_wait_seconds": res.DownloadWait.Seconds(),
	})
	return nil
}

func (p *Pipeline) locate(ctx context.Context, step *StepState, r *run, result *RunResult) error {
	if r.file != "" {
		info, err := os.Stat(r.file)
		if err != nil || info.IsDir() {
			return apperrors.NewNotFoundError("export file " + r.file)
		}
		result.Artifact = r.file
		step.Metadata["file"] = r.file
		return nil
	}

	latest, err := p.locator.LatestExcelFile(p.cfg.DownloadDir)
	if err != nil {
		return err
	}
	if result.Artifact != "" && result.Artifact != latest.Path {
		p.logger.WarnContext(ctx, "Newest export differs from the crawled artifact",
			slog.String("crawled", result.Artifact),
			slog.String("latest", latest.Path))
	}
	r.file = latest.Path
	result.Artifact = latest.Path
	step.Metadata["file"] = latest.Path
	return nil
}

func (p *Pipeline) transform(ctx context.Context, step *StepState, r *run, result *RunResult) error {
	raw, err := p.reader.ReadTable(r.file)
	if err != nil {
		return err
	}
	table, err := p.transformer.Transform(raw)
	if err != nil {
		return err
	}
	table.Source = r.file
	result.RowsRead = table.Len()
	step.Metadata["rows"] = table.Len()
	step.Metadata["missing_numbers"] = table.MissingNumbers()
	infrastructure.AddSpanEvent(ctx, "table.transformed", map[string]interface{}{
		"rows":            table.Len(),
		"missing_numbers": table.MissingNumbers(),
	})

	if p.preview != nil {
		dataprocessing.WritePreview(p.preview, table, p.previewRows)
	}
	r.table = table
	return nil
}

func (p *Pipeline) load(ctx context.Context, step *StepState, r *run, result *RunResult) error {
	n, err := p.loader.Load(ctx, r.table, p.cfg.TableName)
	if err != nil {
		return err
	}
	result.RowsLoaded = n
	step.Metadata["rows"] = n
	if n != int64(r.table.Len()) {
		return apperrors.NewLoadError(fmt.Sprintf("inserted %d of %d rows", n, r.table.Len()), nil).
			WithContext("table", p.cfg.TableName)
	}
	return nil
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
