package analyzer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"liberator/internal/signature"
)

var (
	importRe  = regexp.MustCompile(`(?m)(?:import\s+(?:[\w${},*\s]+\s+from\s+)?|require\s*\(\s*)["']([^"']+)["']`)
	srcAttrRe = regexp.MustCompile(`(?i)(?:src|href)\s*=\s*["'](https?://[^"']+)["']`)
	urlRe     = regexp.MustCompile(`https?://[^\s"'<>)]+`)
)

type manifest struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// analyzeManifest flags denied packages (critical) and classifies every
// declared direct dependency.
func analyzeManifest(path, text string, cat signature.Catalog, res *Result, hits map[string]int, deps map[string]DependencyFinding, nextID func() string) {
	var m manifest
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return
	}
	classify := func(name, version string) {
		if _, seen := deps[name]; seen {
			return
		}
		status := DependencyUnknown
		for _, plat := range cat.Platforms {
			if containsFold(plat.DeniedPackages, name) {
				status = DependencyIncompatible
				hits[plat.Name]++
				res.Issues = append(res.Issues, Issue{
					ID:          nextID(),
					Severity:    SeverityCritical,
					FilePath:    path,
					Description: fmt.Sprintf("manifest depends on proprietary package %q", name),
				})
				break
			}
			if containsFold(plat.CompatiblePackages, name) {
				status = DependencyCompatible
			}
		}
		deps[name] = DependencyFinding{Name: name, DeclaredVersion: version, Status: status}
	}
	for _, name := range sortedMapKeys(m.Dependencies) {
		classify(name, m.Dependencies[name])
	}
	for _, name := range sortedMapKeys(m.DevDependencies) {
		classify(name, m.DevDependencies[name])
	}
}

// analyzeBuildConfig flags non-standard plugin registrations.
func analyzeBuildConfig(path, text string, cat signature.Catalog, res *Result, hits map[string]int, nextID func() string) {
	for _, plat := range cat.Platforms {
		for _, marker := range plat.PluginMarkers {
			if strings.Contains(text, marker) {
				hits[plat.Name]++
				res.Issues = append(res.Issues, Issue{
					ID:          nextID(),
					Severity:    SeverityWarning,
					FilePath:    path,
					Description: fmt.Sprintf("build config registers proprietary plugin %q", marker),
				})
			}
		}
	}
}

// analyzeSource flags proprietary imports (critical) and CDN references
// (warning) in markup and script files.
func analyzeSource(path, text string, cat signature.Catalog, res *Result, hits map[string]int, cdns map[string]struct{}, nextID func() string) {
	for _, match := range importRe.FindAllStringSubmatch(text, -1) {
		spec := match[1]
		for _, plat := range cat.Platforms {
			for _, prefix := range plat.ImportPrefixes {
				if strings.HasPrefix(spec, prefix) {
					hits[plat.Name]++
					res.Issues = append(res.Issues, Issue{
						ID:          nextID(),
						Severity:    SeverityCritical,
						FilePath:    path,
						Description: fmt.Sprintf("imports proprietary module %q", spec),
					})
				}
			}
		}
	}
	flagURL := func(u string) {
		for _, plat := range cat.Platforms {
			for _, host := range plat.CDNHosts {
				if !urlHasHost(u, host) {
					continue
				}
				hits[plat.Name]++
				if _, dup := cdns[u]; !dup {
					cdns[u] = struct{}{}
					res.Issues = append(res.Issues, Issue{
						ID:          nextID(),
						Severity:    SeverityWarning,
						FilePath:    path,
						Description: fmt.Sprintf("references proprietary CDN %s", u),
					})
				}
			}
		}
	}
	for _, match := range srcAttrRe.FindAllStringSubmatch(text, -1) {
		flagURL(match[1])
	}
	for _, u := range urlRe.FindAllString(text, -1) {
		flagURL(u)
	}
}

// analyzeDocs flags stylistic, non-blocking platform mentions.
func analyzeDocs(path, text string, cat signature.Catalog, res *Result, hits map[string]int, nextID func() string) {
	lower := strings.ToLower(text)
	for _, plat := range cat.Platforms {
		for _, marker := range plat.DocMarkers {
			if strings.Contains(lower, strings.ToLower(marker)) {
				hits[plat.Name]++
				res.Issues = append(res.Issues, Issue{
					ID:          nextID(),
					Severity:    SeverityInfo,
					FilePath:    path,
					Description: fmt.Sprintf("documentation mentions %q", marker),
				})
				break
			}
		}
	}
}

func isBuildConfig(base string) bool {
	switch base {
	case "vite.config.js", "vite.config.ts", "vite.config.mjs",
		"webpack.config.js", "rollup.config.js", "next.config.js",
		"next.config.mjs":
		return true
	}
	return false
}

func isMarkupOrSource(base string) bool {
	for _, ext := range []string{".html", ".htm", ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".vue", ".svelte"} {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}
	return false
}

func urlHasHost(raw, host string) bool {
	rest, ok := strings.CutPrefix(raw, "https://")
	if !ok {
		rest, ok = strings.CutPrefix(raw, "http://")
	}
	if !ok {
		return false
	}
	authority := rest
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		authority = rest[:i]
	}
	authority = strings.ToLower(authority)
	host = strings.ToLower(host)
	return authority == host || strings.HasSuffix(authority, "."+host)
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

func sortedMapKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
