package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"liberator/internal/analyzer"
	"liberator/internal/archivestore"
	"liberator/internal/cleaner"
	"liberator/internal/ledger"
	"liberator/internal/llmclient"
	"liberator/internal/packager"
	"liberator/internal/polyfill"
	"liberator/internal/retriever"
	"liberator/internal/signature"
	"liberator/internal/snapshot"
)

// Progress is invoked with (percentComplete, message) at stage and batch
// transitions.
type Progress func(pct int, message string)

// Input selects the source (remote repository or uploaded archive) for one
// run.
type Input struct {
	RepoURL     string
	Branch      string
	ArchiveData []byte
	ProjectName string
	OwnerID     string
	// SkipAI disables the AI-assisted tier for this run.
	SkipAI bool
}

// Result is the complete success payload. There is no partial result state:
// callers get either this or a single stage-tagged error.
type Result struct {
	RunID      string          `json:"run_id"`
	Analysis   analyzer.Result `json:"analysis"`
	ScoreAfter int             `json:"score_after"`
	Stats      cleaner.Stats   `json:"stats"`
	ArchiveRef string          `json:"archive_ref"`
	FilesTotal int             `json:"files_total"`
	Skipped    int             `json:"files_skipped"`
}

// Service runs the liberation pipeline: Retriever -> Analyzer -> Cleaner ->
// Polyfill Synthesizer -> Packager -> Run Ledger. No state survives a run
// except the ledger record; every stage builds fresh values from its input.
type Service struct {
	github   *retriever.Client
	catalog  signature.Catalog
	llm      llmclient.Client // nil disables the AI tier
	archives archivestore.Store
	records  ledger.Store
	aiDelay  time.Duration
	logger   *slog.Logger
}

type ServiceConfig struct {
	GitHub   *retriever.Client
	Catalog  signature.Catalog
	LLM      llmclient.Client
	Archives archivestore.Store
	Records  ledger.Store
	AIDelay  time.Duration
	Logger   *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		github:   cfg.GitHub,
		catalog:  cfg.Catalog,
		llm:      cfg.LLM,
		archives: cfg.Archives,
		records:  cfg.Records,
		aiDelay:  cfg.AIDelay,
		logger:   cfg.Logger,
	}
	if s.github == nil {
		s.github = retriever.New(retriever.Config{})
	}
	if len(s.catalog.Platforms) == 0 {
		s.catalog = signature.Default()
	}
	if s.archives == nil {
		s.archives = archivestore.NewMemoryStore()
	}
	if s.records == nil {
		s.records = ledger.NewMemoryStore()
	}
	if s.aiDelay <= 0 {
		s.aiDelay = time.Second
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Analyze runs only the retrieval and analysis stages, for callers that want
// the user decision point before committing to a full clean.
func (s *Service) Analyze(ctx context.Context, in Input, progress Progress) (analyzer.Result, error) {
	snap, _, err := s.retrieve(ctx, in, progress)
	if err != nil {
		return analyzer.Result{}, err
	}
	report(progress, 90, "analyzing project")
	return analyzer.Analyze(snap, s.catalog), nil
}

// Run executes the full pipeline and blocks until the terminal stage
// completes or fails.
func (s *Service) Run(ctx context.Context, in Input, progress Progress) (Result, error) {
	runID := newRunID()
	log := s.logger.With("run_id", runID, "project", in.ProjectName)
	started := time.Now()

	snap, skipped, err := s.retrieve(ctx, in, scaleProgress(progress, 0, 30))
	if err != nil {
		return Result{}, err
	}
	log.Info("snapshot retrieved", "files", snap.Len(), "skipped", skipped)

	report(progress, 35, "analyzing project")
	analysis := analyzer.Analyze(snap, s.catalog)
	log.Info("analysis complete",
		"score", analysis.Score,
		"issues", len(analysis.Issues),
		"platform", analysis.DetectedPlatform)

	report(progress, 40, "cleaning project")
	var llm llmclient.Client
	if !in.SkipAI {
		llm = s.llm
	}
	eng := cleaner.New(s.catalog,
		cleaner.WithAIClient(llm),
		cleaner.WithAIDelay(s.aiDelay),
		cleaner.WithLogger(s.logger))
	cleaned, stats, _, err := eng.Clean(ctx, snap, analysis, func(done, total int) {
		report(scaleProgress(progress, 40, 70), done*100/max(total, 1),
			fmt.Sprintf("ai cleanup %d/%d", done, total))
	})
	if err != nil {
		return Result{}, stageErr(StageClean, err)
	}
	stats.FilesSkipped = skipped

	report(progress, 75, "synthesizing replacement modules")
	polyfills := polyfill.Synthesize(cleaned, analysis.DetectedPlatform)
	final := polyfill.Apply(cleaned, polyfills)
	if n := len(polyfills); n > 0 {
		stats.PolyfillsGenerated = n - 1 // the aggregate re-export is not a hook replacement
		log.Info("polyfills generated", "count", stats.PolyfillsGenerated)
	}

	report(progress, 85, "packaging archive")
	scoreAfter := analyzer.Analyze(final, s.catalog).Score
	archiveBytes, err := packager.Package(packager.Input{
		ProjectName: s.projectName(in),
		Files:       final,
		Analysis:    analysis,
		ScoreAfter:  scoreAfter,
		Stats:       stats,
		RemovedDeps: removedDeps(analysis),
		Now:         time.Now(),
	})
	if err != nil {
		return Result{}, stageErr(StagePackage, err)
	}
	ref, err := s.archives.Put(ctx, runID, archiveBytes)
	if err != nil {
		return Result{}, stageErr(StagePackage, err)
	}

	// Ledger failure is logged, never surfaced: the archive already exists.
	rec := ledger.Record{
		RunID:       runID,
		OwnerID:     in.OwnerID,
		ProjectName: s.projectName(in),
		ScoreBefore: analysis.Score,
		ScoreAfter:  scoreAfter,
		FilesTotal:  final.Len(),
		CreatedAt:   time.Now(),
		ArchiveRef:  ref,
	}
	if err := s.records.Insert(ctx, rec); err != nil {
		log.Warn("ledger insert failed", "error", err)
	}

	report(progress, 100, "done")
	log.Info("run complete",
		"score_before", analysis.Score,
		"score_after", scoreAfter,
		"archive_ref", ref,
		"elapsed", time.Since(started))
	return Result{
		RunID:      runID,
		Analysis:   analysis,
		ScoreAfter: scoreAfter,
		Stats:      stats,
		ArchiveRef: ref,
		FilesTotal: final.Len(),
		Skipped:    skipped,
	}, nil
}

func (s *Service) retrieve(ctx context.Context, in Input, progress Progress) (*snapshot.Snapshot, int, error) {
	switch {
	case len(in.ArchiveData) > 0:
		report(progress, 10, "extracting archive")
		snap, err := retriever.ExtractArchive(in.ArchiveData)
		if err != nil {
			return nil, 0, stageErr(StageRetrieve, err)
		}
		report(progress, 100, "archive extracted")
		return snap, 0, nil
	case strings.TrimSpace(in.RepoURL) != "":
		ref, err := retriever.ParseRepoRef(in.RepoURL, in.Branch)
		if err != nil {
			return nil, 0, stageErr(StageRetrieve, err)
		}
		report(progress, 5, "listing repository tree")
		snap, stats, err := s.github.FetchTree(ctx, ref, func(done, total int) {
			report(progress, 5+done*95/max(total, 1),
				fmt.Sprintf("fetched %d/%d files", done, total))
		})
		if err != nil {
			return nil, 0, stageErr(StageRetrieve, err)
		}
		return snap, stats.Skipped, nil
	default:
		return nil, 0, stageErr(StageRetrieve,
			fmt.Errorf("either a repository reference or archive data is required"))
	}
}

func (s *Service) projectName(in Input) string {
	if name := strings.TrimSpace(in.ProjectName); name != "" {
		return name
	}
	if ref, err := retriever.ParseRepoRef(in.RepoURL, ""); err == nil {
		return ref.Name
	}
	return "project"
}

func removedDeps(analysis analyzer.Result) []string {
	var out []string
	for _, d := range analysis.Dependencies {
		if d.Status == analyzer.DependencyIncompatible {
			out = append(out, d.Name)
		}
	}
	return out
}

func report(progress Progress, pct int, msg string) {
	if progress != nil {
		progress(pct, msg)
	}
}

// scaleProgress maps a sub-stage's 0..100 progress into [lo, hi] of the
// overall run.
func scaleProgress(progress Progress, lo, hi int) Progress {
	if progress == nil {
		return nil
	}
	return func(pct int, msg string) {
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		progress(lo+(hi-lo)*pct/100, msg)
	}
}

func newRunID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return "run-" + hex.EncodeToString(b[:])
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
