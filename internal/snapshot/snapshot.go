package snapshot

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// FileEntry is one file captured from the source project. Paths are
// repo-relative, slash-separated, and unique within a snapshot.
type FileEntry struct {
	Path    string
	Content []byte
}

// Snapshot is the file set a single run operates on. It is keyed by path;
// insertion order is not significant and consumers must not rely on it.
// A snapshot is immutable once produced by a stage: downstream stages build
// fresh snapshots instead of mutating their input.
type Snapshot struct {
	files map[string]FileEntry
}

func New() *Snapshot {
	return &Snapshot{files: make(map[string]FileEntry)}
}

// Add inserts or replaces the entry for e.Path. Paths are normalized to
// slash-separated form with no leading "./".
func (s *Snapshot) Add(e FileEntry) {
	if s.files == nil {
		s.files = make(map[string]FileEntry)
	}
	e.Path = NormalizePath(e.Path)
	if e.Path == "" {
		return
	}
	s.files[e.Path] = e
}

func (s *Snapshot) Get(path string) (FileEntry, bool) {
	e, ok := s.files[NormalizePath(path)]
	return e, ok
}

func (s *Snapshot) Has(path string) bool {
	_, ok := s.files[NormalizePath(path)]
	return ok
}

func (s *Snapshot) Len() int { return len(s.files) }

// Paths returns all paths in sorted order. Stages that need a deterministic
// traversal (analysis, the serialized AI phase) iterate this slice.
func (s *Snapshot) Paths() []string {
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Clone returns a new snapshot with the same entries. Contents are shared;
// entries are treated as immutable by convention.
func (s *Snapshot) Clone() *Snapshot {
	c := New()
	for _, e := range s.files {
		c.files[e.Path] = e
	}
	return c
}

// NormalizePath converts a path to the canonical snapshot key form.
func NormalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "./")
	p = strings.Trim(p, "/")
	return p
}

// IsText reports whether content looks like text rather than a binary blob.
// The check mirrors what editors do: valid UTF-8 with no NUL bytes in the
// first 8 KiB.
func IsText(content []byte) bool {
	probe := content
	if len(probe) > 8192 {
		probe = probe[:8192]
		// The cut can land inside a multi-byte rune; back off to the last
		// complete boundary so a large valid file is not read as binary.
		for i := 0; i < utf8.UTFMax-1 && len(probe) > 0; i++ {
			r, size := utf8.DecodeLastRune(probe)
			if r != utf8.RuneError || size > 1 {
				break
			}
			probe = probe[:len(probe)-1]
		}
	}
	for _, b := range probe {
		if b == 0 {
			return false
		}
	}
	return utf8.Valid(probe)
}
