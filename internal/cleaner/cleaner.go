package cleaner

import (
	"context"
	"log/slog"
	"path"
	"time"

	"liberator/internal/analyzer"
	"liberator/internal/llmclient"
	"liberator/internal/signature"
	"liberator/internal/snapshot"
)

// systemInstruction is the fixed prompt for the AI-assisted tier.
const systemInstruction = "Remove all proprietary-platform coupling from the" +
	" following file. Preserve behavior. Return the resulting code only, with" +
	" no commentary and no markdown fences."

// Outcome records what happened to one file.
type Outcome struct {
	Path         string   `json:"path"`
	FinalContent []byte   `json:"-"`
	WasChanged   bool     `json:"was_changed"`
	ChangeNotes  []string `json:"change_notes,omitempty"`
}

// Stats aggregates per-run cleaning counters.
type Stats struct {
	FilesRemoved        int `json:"files_removed"`
	FilesChangedLocal   int `json:"files_changed_local"`
	FilesChangedAI      int `json:"files_changed_ai"`
	DependenciesRemoved int `json:"dependencies_removed"`
	PolyfillsGenerated  int `json:"polyfills_generated"`
	CDNRefsReplaced     int `json:"cdn_refs_replaced"`
	FilesSkipped        int `json:"files_skipped"`
}

// Engine applies the two-tier rewrite: deterministic per-role transforms,
// then best-effort AI cleanup of source files. The catalog and AI client are
// injected at construction; the engine reads no ambient configuration.
type Engine struct {
	cat     signature.Catalog
	llm     llmclient.Client // nil disables the AI tier
	aiDelay time.Duration
	logger  *slog.Logger
}

type Option func(*Engine)

// WithAIClient enables the AI-assisted tier.
func WithAIClient(c llmclient.Client) Option {
	return func(e *Engine) { e.llm = c }
}

// WithAIDelay sets the fixed pause between successive AI submissions.
func WithAIDelay(d time.Duration) Option {
	return func(e *Engine) { e.aiDelay = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func New(cat signature.Catalog, opts ...Option) *Engine {
	e := &Engine{cat: cat, aiDelay: time.Second}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Progress is invoked per processed file during the serialized AI phase.
type Progress func(done, total int)

// Clean produces the cleaned file set and counters. Phase A drops removed
// files, Phase B applies deterministic per-role rewrites, Phase C submits
// source files to the AI tier one at a time with the deterministic result as
// fallback. AI failure is never fatal to the run.
func (e *Engine) Clean(ctx context.Context, snap *snapshot.Snapshot, analysis analyzer.Result, progress Progress) (*snapshot.Snapshot, Stats, []Outcome, error) {
	var stats Stats

	removeSet := make(map[string]struct{}, len(analysis.FilesToRemove))
	for _, p := range analysis.FilesToRemove {
		removeSet[snapshot.NormalizePath(p)] = struct{}{}
	}

	out := snapshot.New()
	outcomes := make([]Outcome, 0, snap.Len())
	var aiCandidates []string

	for _, p := range snap.Paths() {
		entry, _ := snap.Get(p)
		base := path.Base(p)

		// Phase A: removal.
		if _, drop := removeSet[p]; drop || e.shouldRemove(base) {
			stats.FilesRemoved++
			continue
		}

		// Phase B: deterministic rewrite by role.
		oc := Outcome{Path: p, FinalContent: entry.Content}
		role := RoleOf(p)
		if xform, ok := transforms[role]; ok && snapshot.IsText(entry.Content) {
			content, notes := xform(string(entry.Content), e.cat)
			if len(notes) > 0 {
				oc.FinalContent = []byte(content)
				oc.WasChanged = true
				oc.ChangeNotes = notes
				stats.FilesChangedLocal++
				stats.DependenciesRemoved += countDependencyNotes(notes)
			}
		}
		stats.CDNRefsReplaced += countCDNRefs(string(entry.Content), e.cat) - countCDNRefs(string(oc.FinalContent), e.cat)

		if role == RoleSource && snapshot.IsText(oc.FinalContent) {
			aiCandidates = append(aiCandidates, p)
		}
		out.Add(snapshot.FileEntry{Path: p, Content: oc.FinalContent})
		outcomes = append(outcomes, oc)
	}

	// Phase C: AI-assisted rewrite, one in-flight call at a time to bound
	// load on the rate-limited upstream service.
	if e.llm != nil {
		byPath := make(map[string]*Outcome, len(outcomes))
		for i := range outcomes {
			byPath[outcomes[i].Path] = &outcomes[i]
		}
		for i, p := range aiCandidates {
			if err := ctx.Err(); err != nil {
				return nil, stats, nil, err
			}
			if i > 0 && e.aiDelay > 0 {
				select {
				case <-ctx.Done():
					return nil, stats, nil, ctx.Err()
				case <-time.After(e.aiDelay):
				}
			}
			entry, _ := out.Get(p)
			cleaned, err := e.llm.Rewrite(ctx, systemInstruction, string(entry.Content))
			cleaned = llmclient.StripCodeFence(cleaned)
			if err != nil {
				e.logger.Warn("ai rewrite failed, keeping deterministic result",
					"path", p, "error", err)
			} else if cleaned != "" && cleaned != string(entry.Content) {
				out.Add(snapshot.FileEntry{Path: p, Content: []byte(cleaned)})
				oc := byPath[p]
				oc.FinalContent = []byte(cleaned)
				oc.WasChanged = true
				oc.ChangeNotes = append(oc.ChangeNotes, "ai-assisted cleanup")
				stats.FilesChangedAI++
			}
			if progress != nil {
				progress(i+1, len(aiCandidates))
			}
		}
	}

	return out, stats, outcomes, nil
}

// shouldRemove is the removal rule independent of the analysis result, so a
// platform metadata file missed upstream still never survives cleaning.
func (e *Engine) shouldRemove(base string) bool {
	for _, plat := range e.cat.Platforms {
		if plat.Removable(base) {
			return true
		}
	}
	return false
}
