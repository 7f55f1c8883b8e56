package retriever

import (
	"path"
	"strings"
)

// The retrieval allow-list targets web front-end projects: markup, styles,
// scripts, manifests, config, and container build files. Dependency caches,
// build output, and VCS metadata are always excluded.

var allowedExtensions = map[string]struct{}{
	".html": {}, ".htm": {}, ".css": {}, ".scss": {}, ".less": {},
	".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {}, ".mjs": {}, ".cjs": {},
	".vue": {}, ".svelte": {},
	".json": {}, ".yaml": {}, ".yml": {}, ".toml": {},
	".md": {}, ".txt": {}, ".svg": {},
}

var allowedFilenames = map[string]struct{}{
	"package.json": {}, "tsconfig.json": {}, "jsconfig.json": {},
	"vite.config.js": {}, "vite.config.ts": {}, "vite.config.mjs": {},
	"webpack.config.js": {}, "rollup.config.js": {},
	"next.config.js": {}, "next.config.mjs": {},
	"dockerfile": {}, "docker-compose.yml": {}, "docker-compose.yaml": {},
	".babelrc": {}, ".eslintrc": {}, ".eslintrc.json": {}, ".prettierrc": {},
	".env.example": {}, ".nvmrc": {}, "index.html": {},
}

var excludedDirs = map[string]struct{}{
	"node_modules": {}, "dist": {}, "build": {}, "out": {}, ".next": {},
	".git": {}, ".svn": {}, ".hg": {}, "vendor": {}, "coverage": {},
	"__pycache__": {}, ".cache": {},
}

// WantPath reports whether a repo-relative path belongs in a snapshot.
func WantPath(p string) bool {
	p = strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return false
	}
	for _, seg := range strings.Split(path.Dir(p), "/") {
		if _, skip := excludedDirs[strings.ToLower(seg)]; skip {
			return false
		}
	}
	base := strings.ToLower(path.Base(p))
	if _, ok := allowedFilenames[base]; ok {
		return true
	}
	_, ok := allowedExtensions[strings.ToLower(path.Ext(base))]
	return ok
}
