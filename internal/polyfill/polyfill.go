package polyfill

import (
	"sort"
	"strings"

	"liberator/internal/snapshot"
)

// Polyfill is a standalone replacement module for one removed platform hook,
// implemented with standard browser primitives only.
type Polyfill struct {
	SourceSymbol     string `json:"source_symbol"`
	GeneratedPath    string `json:"generated_path"`
	GeneratedContent string `json:"-"`
}

// Hook is one platform interface point the cleaner may have stripped.
type Hook struct {
	Symbol  string
	Path    string
	Content string
}

// Synthesize scans surviving source files for references to removed platform
// hooks (textual scan, not a parse) and emits one replacement module per
// referenced hook plus an aggregating re-export. The hook names are generic
// enough to collide with unrelated libraries, so synthesis only runs when a
// platform was actually detected; with no platform or zero references it
// emits nothing.
func Synthesize(snap *snapshot.Snapshot, platform string) []Polyfill {
	if platform == "" {
		return nil
	}
	referenced := map[string]Hook{}
	for _, p := range snap.Paths() {
		if !isSourcePath(p) {
			continue
		}
		entry, _ := snap.Get(p)
		if !snapshot.IsText(entry.Content) {
			continue
		}
		text := string(entry.Content)
		for _, h := range catalog {
			if _, done := referenced[h.Symbol]; done {
				continue
			}
			if strings.Contains(text, h.Symbol) {
				referenced[h.Symbol] = h
			}
		}
	}
	if len(referenced) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(referenced))
	for s := range referenced {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	out := make([]Polyfill, 0, len(symbols)+1)
	var index strings.Builder
	index.WriteString("// Auto-generated aggregate of platform replacement modules.\n")
	for _, s := range symbols {
		h := referenced[s]
		out = append(out, Polyfill{
			SourceSymbol:     h.Symbol,
			GeneratedPath:    h.Path,
			GeneratedContent: h.Content,
		})
		mod := strings.TrimSuffix(strings.TrimPrefix(h.Path, "src/lib/"), ".js")
		index.WriteString("export * from \"./" + mod + "\";\n")
	}
	out = append(out, Polyfill{
		SourceSymbol:     "index",
		GeneratedPath:    "src/lib/index.js",
		GeneratedContent: index.String(),
	})
	return out
}

// Apply returns a snapshot extended with the generated modules.
func Apply(snap *snapshot.Snapshot, polyfills []Polyfill) *snapshot.Snapshot {
	if len(polyfills) == 0 {
		return snap
	}
	out := snap.Clone()
	for _, pf := range polyfills {
		out.Add(snapshot.FileEntry{Path: pf.GeneratedPath, Content: []byte(pf.GeneratedContent)})
	}
	return out
}

func isSourcePath(p string) bool {
	for _, ext := range []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".vue", ".svelte"} {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
