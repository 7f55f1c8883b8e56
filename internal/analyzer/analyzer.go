package analyzer

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"liberator/internal/signature"
	"liberator/internal/snapshot"
)

// Analyze scans a snapshot for proprietary-platform signatures and produces a
// portability assessment. It is a pure function of its inputs: no network, no
// AI, no mutation of the snapshot. Calling it twice on identical input yields
// identical results.
func Analyze(snap *snapshot.Snapshot, cat signature.Catalog) Result {
	res := Result{Score: 100}
	if snap == nil || snap.Len() == 0 {
		return res
	}

	hits := make(map[string]int, len(cat.Platforms))
	seq := 0
	nextID := func() string {
		seq++
		return fmt.Sprintf("ISS-%04d", seq)
	}

	removeSet := map[string]struct{}{}
	cdnSet := map[string]struct{}{}
	depSeen := map[string]DependencyFinding{}

	for _, p := range snap.Paths() {
		entry, _ := snap.Get(p)
		base := path.Base(p)

		for _, plat := range cat.Platforms {
			if plat.Removable(base) {
				removeSet[p] = struct{}{}
				hits[plat.Name]++
			}
		}
		if _, removed := removeSet[p]; removed {
			continue
		}
		if !snapshot.IsText(entry.Content) {
			continue
		}
		text := string(entry.Content)

		switch {
		case base == "package.json":
			analyzeManifest(p, text, cat, &res, hits, depSeen, nextID)
		case isBuildConfig(base):
			analyzeBuildConfig(p, text, cat, &res, hits, nextID)
		}
		if isMarkupOrSource(base) {
			analyzeSource(p, text, cat, &res, hits, cdnSet, nextID)
		}
		if strings.HasSuffix(base, ".md") || strings.HasSuffix(base, ".txt") {
			analyzeDocs(p, text, cat, &res, hits, nextID)
		}
	}

	for _, p := range sortedKeys(removeSet) {
		res.FilesToRemove = append(res.FilesToRemove, p)
	}
	for _, u := range sortedKeys(cdnSet) {
		res.ProprietaryCDNs = append(res.ProprietaryCDNs, u)
	}
	for _, name := range sortedDepNames(depSeen) {
		res.Dependencies = append(res.Dependencies, depSeen[name])
	}

	res.Score = score(cat.Weights, res.Issues)
	res.Recommendations = recommendations(res.Issues, cat.MaxRecommendations)
	res.DetectedPlatform = dominantPlatform(hits)
	return res
}

func score(w signature.Weights, issues []Issue) int {
	s := 100
	for _, is := range issues {
		switch is.Severity {
		case SeverityCritical:
			s -= w.Critical
		case SeverityWarning:
			s -= w.Warning
		case SeverityInfo:
			s -= w.Info
		}
	}
	if s < 0 {
		s = 0
	}
	return s
}

// recommendations derives display hints 1:1 from the highest-severity issues,
// capped at max.
func recommendations(issues []Issue, max int) []string {
	ranked := make([]Issue, len(issues))
	copy(ranked, issues)
	sort.SliceStable(ranked, func(i, j int) bool {
		return severityRank(ranked[i].Severity) > severityRank(ranked[j].Severity)
	})
	var out []string
	for _, is := range ranked {
		if len(out) >= max {
			break
		}
		out = append(out, fmt.Sprintf("%s: %s", is.FilePath, is.Description))
	}
	return out
}

func dominantPlatform(hits map[string]int) string {
	best, bestN := "", 0
	for _, name := range sortedKeys(toSet(hits)) {
		if n := hits[name]; n > bestN {
			best, bestN = name, n
		}
	}
	return best
}

func toSet(m map[string]int) map[string]struct{} {
	s := make(map[string]struct{}, len(m))
	for k := range m {
		s[k] = struct{}{}
	}
	return s
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedDepNames(m map[string]DependencyFinding) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
