package signature

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the swappable detector configuration: which signatures mark a
// file as coupled to a proprietary platform, and how heavily each finding
// weighs on the portability score. The analyzer and cleaner receive a catalog
// at construction and never read ambient configuration themselves.
type Catalog struct {
	Weights            Weights    `yaml:"weights"`
	MaxRecommendations int        `yaml:"max_recommendations"`
	Platforms          []Platform `yaml:"platforms"`
}

// Weights are the per-severity score deductions.
type Weights struct {
	Critical int `yaml:"critical"`
	Warning  int `yaml:"warning"`
	Info     int `yaml:"info"`
}

// Platform is one proprietary platform's signature set.
type Platform struct {
	Name string `yaml:"name"`

	// DeniedPackages are manifest dependencies that tie the project to the
	// platform and must be stripped.
	DeniedPackages []string `yaml:"denied_packages"`
	// CompatiblePackages are known-portable dependencies; anything not in
	// either list is reported as unknown.
	CompatiblePackages []string `yaml:"compatible_packages"`
	// ImportPrefixes flag import/require paths in source files.
	ImportPrefixes []string `yaml:"import_prefixes"`
	// ImportRewrites maps a proprietary import path prefix to its open
	// replacement, applied by the deterministic rewrite tier.
	ImportRewrites map[string]string `yaml:"import_rewrites"`
	// CDNHosts flag third-party script/style URLs.
	CDNHosts []string `yaml:"cdn_hosts"`
	// RemovableFiles are files wholly defined by the platform (its own
	// config/metadata); they are removed rather than rewritten.
	RemovableFiles []string `yaml:"removable_files"`
	// PluginMarkers flag bundler-config plugin registrations.
	PluginMarkers []string `yaml:"plugin_markers"`
	// DocMarkers flag non-blocking platform mentions in docs.
	DocMarkers []string `yaml:"doc_markers"`
}

// Default returns the built-in catalog. The entries are product data, not
// algorithmic invariants; tests assert scoring properties, not exact values.
func Default() Catalog {
	return Catalog{
		Weights:            Weights{Critical: 15, Warning: 5, Info: 1},
		MaxRecommendations: 5,
		Platforms: []Platform{
			{
				Name: "base44",
				DeniedPackages: []string{
					"@base44/sdk",
					"@base44/vite-plugin",
					"@base44/react",
				},
				CompatiblePackages: []string{
					"react", "react-dom", "react-router-dom",
					"vite", "tailwindcss", "axios", "zod",
				},
				ImportPrefixes: []string{"@base44/"},
				ImportRewrites: map[string]string{
					"@base44/sdk": "./lib",
				},
				CDNHosts: []string{
					"cdn.base44.com",
					"base44.app",
				},
				RemovableFiles: []string{
					"base44.config.json",
					".base44rc",
					".base44",
				},
				PluginMarkers: []string{"base44Plugin", "@base44/vite-plugin"},
				DocMarkers:    []string{"base44"},
			},
		},
	}
}

// Load reads a YAML catalog file. Missing sections fall back to the default
// catalog so a file can override just the platform lists or just the weights.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("signature: read catalog: %w", err)
	}
	cat := Default()
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("signature: parse catalog: %w", err)
	}
	return cat.normalized(), nil
}

func (c Catalog) normalized() Catalog {
	if c.Weights.Critical <= 0 {
		c.Weights.Critical = 15
	}
	if c.Weights.Warning <= 0 {
		c.Weights.Warning = 5
	}
	if c.Weights.Info <= 0 {
		c.Weights.Info = 1
	}
	if c.MaxRecommendations <= 0 {
		c.MaxRecommendations = 5
	}
	return c
}

// PlatformNamed returns the platform with the given name, if present.
func (c Catalog) PlatformNamed(name string) (Platform, bool) {
	for _, p := range c.Platforms {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Platform{}, false
}

// Removable reports whether base (a file's last path segment) is one of the
// platform's wholly-owned files.
func (p Platform) Removable(base string) bool {
	for _, f := range p.RemovableFiles {
		if strings.EqualFold(base, f) {
			return true
		}
	}
	return false
}
