package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/ai"
	"github.com/spigell/o1-screener/internal/logger"
	"github.com/spigell/o1-screener/internal/profile"
	"github.com/spigell/o1-screener/internal/scoring"
	"github.com/spigell/o1-screener/internal/scraper"
	"github.com/spigell/o1-screener/internal/storage"
)

const (
	StepReference   = "reference_resolution"
	StepScraping    = "scraping"
	StepAssessment  = "assessment"
	StepSaveResults = "save_results"
	StepRanking     = "ranking"
	StepGeneral     = "general"

	DefaultCandidateThreshold = 0.6
)

// Store is the part of the profile store a run needs.
type Store interface {
	Get(ctx context.Context, id string) (*profile.Profile, error)
	Query(ctx context.Context, f storage.Filter) ([]*profile.Profile, error)
	MarkProcessing(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id string) error
	SaveResults(ctx context.Context, p *profile.Profile) error
	RestoreFailed(ctx context.Context, p *profile.Profile) error
	UpdateSuitability(ctx context.Context, id string, score *float64, reason string, review profile.ReviewStatus) error
	Rerank(ctx context.Context) (int, error)
}

type Audit interface {
	Append(ctx context.Context, e profile.LogEntry) error
}

type Scraper interface {
	Scrape(ctx context.Context, reference string) (*profile.Document, error)
}

type Deps struct {
	Store    Store
	Audit    Audit
	Scraper  Scraper
	Assessor ai.Assessor
	Logger   *zap.Logger
}

type Config struct {
	// CandidateThreshold is the suitability score at which an unreviewed profile becomes a candidate.
	CandidateThreshold float64 `mapstructure:"candidate-threshold"`
}

// Result is the outcome of one run.
type Result struct {
	ProfileID  string   `json:"profile_id"`
	Success    bool     `json:"success"`
	FinalScore *float64 `json:"final_score,omitempty"`
	Rank       *int     `json:"rank,omitempty"`
	FailedStep string   `json:"failed_step,omitempty"`
	Kind       Kind     `json:"error_kind,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Processor drives one profile through the pipeline steps.
type Processor struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	steps  []step
}

// run carries the state of one profile through the steps.
type run struct {
	// original is the profile as loaded, written back if a step fails after results were saved.
	original   profile.Profile
	saved      bool
	profile    *profile.Profile
	reference  string
	document   *profile.Document
	signals    ai.Signals
	assessment *ai.Assessment
	ranked     int
}

type step struct {
	name string
	// fallback is used when the step error carries no known kind.
	fallback Kind
	// single steps write one audit row instead of started then completed.
	single bool
	exec   func(ctx context.Context, r *run) (string, map[string]any, error)
}

func NewProcessor(deps Deps, cfg Config) *Processor {
	if cfg.CandidateThreshold <= 0 {
		cfg.CandidateThreshold = DefaultCandidateThreshold
	}
	p := &Processor{
		deps:   deps,
		cfg:    cfg,
		logger: logger.OrNop(deps.Logger),
	}
	p.steps = []step{
		{name: StepReference, fallback: KindMissingReference, single: true, exec: p.resolveReference},
		{name: StepScraping, fallback: KindUnavailable, exec: p.scrape},
		{name: StepAssessment, fallback: KindAssessment, exec: p.assess},
		{name: StepSaveResults, fallback: KindPersistence, exec: p.save},
		{name: StepRanking, fallback: KindPersistence, exec: p.rank},
	}
	return p
}

// Process runs every step for one profile. Failures never escape as errors or
// panics; they are recorded on the profile, in the audit log and in the Result.
func (p *Processor) Process(ctx context.Context, id string) (res Result) {
	res = Result{ProfileID: id}
	log := logger.WithFields(p.logger, logger.ProfileFields(id, "")...)

	var r *run
	defer func() {
		if rec := recover(); rec != nil {
			res = p.fail(ctx, id, r, &Error{Kind: KindInternal, Step: StepGeneral, Err: fmt.Errorf("panic: %v", rec)})
		}
	}()

	current, err := p.deps.Store.Get(ctx, id)
	if err != nil {
		log.Error("loading profile", zap.Error(err))
		res.Kind = KindPersistence
		res.Error = err.Error()
		return res
	}
	r = &run{original: *current, profile: current}

	hadRank, err := p.deps.Store.MarkProcessing(ctx, id)
	if err != nil {
		return p.fail(ctx, id, r, &Error{Kind: KindPersistence, Step: StepGeneral, Err: err})
	}
	if hadRank {
		if _, err := p.deps.Store.Rerank(ctx); err != nil {
			log.Warn("re-ranking after rank release", zap.Error(err))
		}
	}

	log.Info("processing profile", zap.String("name", current.Name))

	for _, s := range p.steps {
		if !s.single {
			p.record(ctx, id, s.name, profile.LogStarted, "", nil)
		}

		message, data, err := s.exec(ctx, r)
		if err != nil {
			return p.fail(ctx, id, r, classifyStep(s, err))
		}

		p.record(ctx, id, s.name, profile.LogCompleted, message, data)
		log.Debug("pipeline step", zap.String(logger.FieldStep, s.name), zap.String("message", message))
	}

	res.Success = true
	res.FinalScore = r.profile.FinalScore
	if updated, err := p.deps.Store.Get(ctx, id); err == nil {
		res.Rank = updated.Rank
	} else {
		log.Warn("reading rank", zap.Error(err))
	}

	fields := []zap.Field{zap.Int("ranked", r.ranked)}
	if res.FinalScore != nil {
		fields = append(fields, zap.Float64("final_score", *res.FinalScore))
	}
	if res.Rank != nil {
		fields = append(fields, zap.Int("rank", *res.Rank))
	}
	log.Info("profile processed", fields...)

	return res
}

func (p *Processor) resolveReference(_ context.Context, r *run) (string, map[string]any, error) {
	ref := scraper.NormalizeReference(r.profile.Reference)
	if ref == "" {
		return "", nil, ErrMissingReference
	}
	r.reference = ref
	return "reference resolved", map[string]any{"reference": ref}, nil
}

func (p *Processor) scrape(ctx context.Context, r *run) (string, map[string]any, error) {
	doc, err := p.deps.Scraper.Scrape(ctx, r.reference)
	if err != nil {
		return "", nil, err
	}
	if doc == nil {
		return "", nil, fmt.Errorf("%w: empty document", scraper.ErrFailed)
	}
	r.document = doc

	data := map[string]any{
		"data_size":   documentSize(doc),
		"experience":  len(doc.Experience),
		"education":   len(doc.Education),
		"connections": doc.BasicInfo.Connections,
		"followers":   doc.BasicInfo.Followers,
	}
	if doc.NormalizationError != "" {
		data["normalization_error"] = doc.NormalizationError
	}
	return "profile scraped", data, nil
}

func (p *Processor) assess(ctx context.Context, r *run) (string, map[string]any, error) {
	r.signals = computeSignals(r.document)

	assessment, err := p.deps.Assessor.Assess(ctx, &ai.Input{
		ProfileID:      r.profile.ID,
		Name:           r.profile.Name,
		AdditionalInfo: r.profile.AdditionalInfo,
		Document:       r.document,
		Signals:        r.signals,
	})
	if err != nil {
		if !errors.Is(err, ai.ErrAssessment) {
			err = fmt.Errorf("%w: %w", ai.ErrAssessment, err)
		}
		return "", nil, err
	}
	if err := assessment.Err(); err != nil {
		return "", nil, err
	}
	r.assessment = assessment

	return "profile assessed", map[string]any{
		"overall_score": assessment.OverallScore,
		"seniority":     r.signals.Seniority.Tier,
		"company_tier":  string(r.signals.CompanyTier),
		"reach_score":   r.signals.Reach.Score,
		"likelihood":    assessment.Likelihood,
	}, nil
}

func (p *Processor) save(ctx context.Context, r *run) (string, map[string]any, error) {
	current := *r.profile
	score := r.assessment.OverallScore

	payload := r.assessment.Payload()
	payload["signals"] = r.signals

	current.Document = r.document
	current.Assessment = payload
	current.Evidence = r.assessment.Evidence
	current.FinalScore = &score
	current.SuitabilityScore = r.signals.Suitability.Score
	current.SuitabilityReason = r.signals.Suitability.Reason
	current.ReviewStatus = p.reviewStatus(current.ReviewStatus, current.SuitabilityScore)

	if err := p.deps.Store.SaveResults(ctx, &current); err != nil {
		return "", nil, &Error{Kind: KindPersistence, Step: StepSaveResults, Err: err}
	}
	r.saved = true
	r.profile = &current

	return "results saved", map[string]any{
		"final_score":   score,
		"completed_seq": current.CompletedSeq,
		"review_status": string(current.ReviewStatus),
	}, nil
}

func (p *Processor) rank(ctx context.Context, r *run) (string, map[string]any, error) {
	n, err := p.deps.Store.Rerank(ctx)
	if err != nil {
		return "", nil, &Error{Kind: KindPersistence, Step: StepRanking, Err: err}
	}
	r.ranked = n
	return "rankings updated", map[string]any{"ranked_profiles": n}, nil
}

// RecomputeSuitability refreshes the suitability of every completed profile
// and promotes unreviewed profiles over the candidate threshold.
func (p *Processor) RecomputeSuitability(ctx context.Context) (int, error) {
	completed, err := p.deps.Store.Query(ctx, storage.Filter{Statuses: []profile.Status{profile.StatusCompleted}})
	if err != nil {
		return 0, fmt.Errorf("listing completed profiles: %w", err)
	}

	updated := 0
	for _, prof := range completed {
		res := scoring.Suitability(prof.Document, prof.Assessment)
		review := p.reviewStatus(prof.ReviewStatus, res.Score)
		if err := p.deps.Store.UpdateSuitability(ctx, prof.ID, res.Score, res.Reason, review); err != nil {
			return updated, fmt.Errorf("updating suitability of %s: %w", prof.ID, err)
		}
		updated++
	}

	p.logger.Info("suitability recomputed", zap.Int("profiles", updated))
	return updated, nil
}

func (p *Processor) reviewStatus(current profile.ReviewStatus, score *float64) profile.ReviewStatus {
	if current != "" && current != profile.ReviewUnknown {
		return current
	}
	if score != nil && *score >= p.cfg.CandidateThreshold {
		return profile.ReviewCandidate
	}
	return profile.ReviewUnknown
}

// classifyStep keeps an error a step already classified and tags everything
// else with the step, using the step fallback for unknown errors.
func classifyStep(s step, err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		if classified.Step == "" {
			classified.Step = s.name
		}
		return classified
	}
	kind := Classify(err)
	if kind == KindInternal && s.fallback != "" {
		kind = s.fallback
	}
	return &Error{Kind: kind, Step: s.name, Err: err}
}

// fail records a failed run. Results saved earlier in the run are rolled back
// to the loaded profile. Without a loaded profile nothing is written.
func (p *Processor) fail(ctx context.Context, id string, r *run, err *Error) Result {
	log := logger.WithFields(p.logger, logger.ProfileFields(id, err.Step)...)

	if r != nil {
		p.record(ctx, id, err.Step, profile.LogFailed, err.Err.Error(), map[string]any{
			"error_kind": string(err.Kind),
			"error":      err.Err.Error(),
		})

		var markErr error
		if r.saved {
			markErr = p.deps.Store.RestoreFailed(ctx, &r.original)
		} else {
			markErr = p.deps.Store.MarkFailed(ctx, id)
		}
		if markErr != nil {
			log.Warn("marking profile failed", zap.Error(markErr))
		}
	}

	log.Error("profile processing failed", zap.String("error_kind", string(err.Kind)), zap.Error(err.Err))

	return Result{
		ProfileID:  id,
		FailedStep: err.Step,
		Kind:       err.Kind,
		Error:      err.Error(),
	}
}

// record appends an audit row. Audit failures are logged and do not stop the run.
func (p *Processor) record(ctx context.Context, id, stepName string, status profile.LogStatus, message string, data map[string]any) {
	if message == "" {
		message = strings.ReplaceAll(stepName, "_", " ") + " " + string(status)
	}
	entry := profile.LogEntry{ProfileID: id, Step: stepName, Status: status, Message: message, Data: data}
	if err := p.deps.Audit.Append(ctx, entry); err != nil {
		p.logger.Warn("appending audit entry", append(logger.ProfileFields(id, stepName), zap.Error(err))...)
	}
}

func computeSignals(doc *profile.Document) ai.Signals {
	title, company := doc.CurrentPosition()
	return ai.Signals{
		Seniority:   scoring.ClassifySeniority(title, company),
		Reach:       scoring.ScoreReach(doc.BasicInfo.Followers, doc.BasicInfo.Connections),
		CompanyTier: scoring.ResolveCompanyTier(company),
		Suitability: scoring.Suitability(doc, nil),
	}
}

func documentSize(doc *profile.Document) int {
	data, err := json.Marshal(doc)
	if err != nil {
		return 0
	}
	return len(data)
}
