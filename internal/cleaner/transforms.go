package cleaner

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"liberator/internal/signature"
)

// FileRole selects which deterministic transform applies to a file.
type FileRole string

const (
	RoleManifest      FileRole = "manifest"
	RoleBundlerConfig FileRole = "bundler-config"
	RoleEntryHTML     FileRole = "entry-html"
	RoleSource        FileRole = "source"
	RoleOther         FileRole = "other"
)

// RoleOf classifies a snapshot path.
func RoleOf(p string) FileRole {
	base := strings.ToLower(path.Base(p))
	switch base {
	case "package.json":
		return RoleManifest
	case "vite.config.js", "vite.config.ts", "vite.config.mjs",
		"webpack.config.js", "rollup.config.js",
		"next.config.js", "next.config.mjs":
		return RoleBundlerConfig
	}
	switch path.Ext(base) {
	case ".html", ".htm":
		return RoleEntryHTML
	case ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".vue", ".svelte":
		return RoleSource
	}
	return RoleOther
}

// transformFunc returns the rewritten content plus human-readable change
// notes. No notes means "unchanged" and the original content is kept as-is.
type transformFunc func(content string, cat signature.Catalog) (string, []string)

// transforms is the closed dispatch table for the deterministic tier.
var transforms = map[FileRole]transformFunc{
	RoleManifest:      transformManifest,
	RoleBundlerConfig: transformBundlerConfig,
	RoleEntryHTML:     transformEntryHTML,
	RoleSource:        transformSource,
}

// transformManifest strips manifest entries for denied packages, including
// scripts that invoke them. The original text is preserved byte-for-byte when
// nothing is removed.
func transformManifest(content string, cat signature.Catalog) (string, []string) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return content, nil
	}
	var notes []string
	for _, section := range []string{"dependencies", "devDependencies"} {
		raw, ok := m[section]
		if !ok {
			continue
		}
		var deps map[string]string
		if err := json.Unmarshal(raw, &deps); err != nil {
			continue
		}
		removed := false
		for _, name := range sortedKeys(deps) {
			if !deniedPackage(cat, name) {
				continue
			}
			delete(deps, name)
			removed = true
			notes = append(notes, fmt.Sprintf("dependency removed: %s", name))
		}
		if removed {
			enc, err := json.Marshal(deps)
			if err != nil {
				return content, nil
			}
			m[section] = enc
		}
	}
	if raw, ok := m["scripts"]; ok {
		var scripts map[string]string
		if err := json.Unmarshal(raw, &scripts); err == nil {
			removed := false
			for _, name := range sortedKeys(scripts) {
				if !commandMentionsDenied(cat, scripts[name]) {
					continue
				}
				delete(scripts, name)
				removed = true
				notes = append(notes, fmt.Sprintf("script removed: %s", name))
			}
			if removed {
				if enc, err := json.Marshal(scripts); err == nil {
					m["scripts"] = enc
				}
			}
		}
	}
	if len(notes) == 0 {
		return content, nil
	}
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return content, nil
	}
	return string(out) + "\n", notes
}

// transformBundlerConfig drops plugin imports/registrations tied to the
// removed platform, line by line.
func transformBundlerConfig(content string, cat signature.Catalog) (string, []string) {
	var notes []string
	keep := func(line string) bool {
		for _, plat := range cat.Platforms {
			for _, marker := range plat.PluginMarkers {
				if strings.Contains(line, marker) {
					notes = append(notes, fmt.Sprintf("plugin reference removed: %s", marker))
					return false
				}
			}
		}
		return true
	}
	out := filterLines(content, keep)
	if len(notes) == 0 {
		return content, nil
	}
	return out, notes
}

// transformEntryHTML strips injected script/link/meta tags pointing at the
// platform's CDN hosts.
func transformEntryHTML(content string, cat signature.Catalog) (string, []string) {
	var notes []string
	keep := func(line string) bool {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "<script") && !strings.Contains(lower, "<link") && !strings.Contains(lower, "<meta") {
			return true
		}
		for _, plat := range cat.Platforms {
			for _, host := range plat.CDNHosts {
				if strings.Contains(lower, strings.ToLower(host)) {
					notes = append(notes, fmt.Sprintf("CDN reference removed: %s", host))
					return false
				}
			}
		}
		return true
	}
	out := filterLines(content, keep)
	if len(notes) == 0 {
		return content, nil
	}
	return out, notes
}

// transformSource rewrites proprietary import paths to their open
// equivalents.
func transformSource(content string, cat signature.Catalog) (string, []string) {
	var notes []string
	out := content
	for _, plat := range cat.Platforms {
		for _, from := range sortedKeys(plat.ImportRewrites) {
			to := plat.ImportRewrites[from]
			for _, q := range []string{`"`, `'`} {
				needle := q + from
				if !strings.Contains(out, needle) {
					continue
				}
				out = strings.ReplaceAll(out, needle, q+to)
				notes = append(notes, fmt.Sprintf("import rewritten: %s -> %s", from, to))
			}
		}
	}
	if len(notes) == 0 {
		return content, nil
	}
	return out, notes
}

func commandMentionsDenied(cat signature.Catalog, command string) bool {
	for _, plat := range cat.Platforms {
		for _, d := range plat.DeniedPackages {
			if strings.Contains(command, d) {
				return true
			}
		}
	}
	return false
}

func deniedPackage(cat signature.Catalog, name string) bool {
	for _, plat := range cat.Platforms {
		for _, d := range plat.DeniedPackages {
			if strings.EqualFold(d, name) {
				return true
			}
		}
	}
	return false
}

func filterLines(content string, keep func(string) bool) string {
	lines := strings.Split(content, "\n")
	out := lines[:0:0]
	for _, line := range lines {
		if keep(line) {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func countDependencyNotes(notes []string) int {
	n := 0
	for _, note := range notes {
		if strings.HasPrefix(note, "dependency removed:") {
			n++
		}
	}
	return n
}

// countCDNRefs counts proprietary CDN host occurrences; the cleaner reports
// the per-file delta as "CDN URLs replaced".
func countCDNRefs(text string, cat signature.Catalog) int {
	n := 0
	lower := strings.ToLower(text)
	for _, plat := range cat.Platforms {
		for _, host := range plat.CDNHosts {
			n += strings.Count(lower, strings.ToLower(host))
		}
	}
	return n
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
