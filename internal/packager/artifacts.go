package packager

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"liberator/internal/analyzer"
	"liberator/internal/cleaner"
	"liberator/internal/snapshot"
)

// envTokenRe matches ENV_VAR_NAME-shaped tokens in the reference patterns
// used by web projects: process.env.X, import.meta.env.X, $X and ${X}.
var envTokenRe = regexp.MustCompile(
	`(?:process\.env\.|import\.meta\.env\.|\$\{?)([A-Z][A-Z0-9_]{2,})\}?`)

// Dockerfile returns the container build file for a static web project.
func Dockerfile(projectName string) string {
	return fmt.Sprintf(`# Build and serve %s as a static site.
FROM node:20-alpine AS build
WORKDIR /app
COPY package*.json ./
RUN npm install
COPY . .
RUN npm run build

FROM nginx:1.27-alpine
COPY --from=build /app/dist /usr/share/nginx/html
COPY nginx.conf /etc/nginx/conf.d/default.conf
EXPOSE 80
CMD ["nginx", "-g", "daemon off;"]
`, projectName)
}

// NginxConf returns the reverse-proxy/static-server config: SPA fallback,
// static-asset caching, and gzip compression.
func NginxConf() string {
	return `server {
    listen 80;
    server_name _;
    root /usr/share/nginx/html;
    index index.html;

    gzip on;
    gzip_types text/plain text/css application/javascript application/json image/svg+xml;
    gzip_min_length 1024;

    location ~* \.(js|css|png|jpg|jpeg|gif|svg|ico|woff2?)$ {
        expires 30d;
        add_header Cache-Control "public, immutable";
    }

    location / {
        try_files $uri $uri/ /index.html;
    }
}
`
}

// EnvTemplate lists every distinct environment-variable token referenced by
// the final file set, one "NAME=" per line, sorted.
func EnvTemplate(snap *snapshot.Snapshot) string {
	seen := map[string]struct{}{}
	for _, p := range snap.Paths() {
		entry, _ := snap.Get(p)
		if !snapshot.IsText(entry.Content) {
			continue
		}
		for _, m := range envTokenRe.FindAllStringSubmatch(string(entry.Content), -1) {
			seen[m[1]] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("# Environment variables referenced by this project.\n")
	for _, n := range names {
		b.WriteString(n)
		b.WriteString("=\n")
	}
	return b.String()
}

// Report renders the human-readable liberation report.
func Report(projectName string, analysis analyzer.Result, scoreAfter int, stats cleaner.Stats, removedDeps []string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Liberation Report: %s\n\n", projectName)
	fmt.Fprintf(&b, "Generated: %s\n\n", now.UTC().Format(time.RFC3339))

	b.WriteString("## Portability score\n\n")
	fmt.Fprintf(&b, "- Before: %d / 100\n", analysis.Score)
	fmt.Fprintf(&b, "- After: %d / 100\n\n", scoreAfter)
	if analysis.DetectedPlatform != "" {
		fmt.Fprintf(&b, "Detected platform: %s\n\n", analysis.DetectedPlatform)
	}

	b.WriteString("## What changed\n\n")
	fmt.Fprintf(&b, "- Files removed: %d\n", stats.FilesRemoved)
	fmt.Fprintf(&b, "- Files rewritten (deterministic): %d\n", stats.FilesChangedLocal)
	fmt.Fprintf(&b, "- Files rewritten (AI-assisted): %d\n", stats.FilesChangedAI)
	fmt.Fprintf(&b, "- Dependencies removed: %d\n", stats.DependenciesRemoved)
	fmt.Fprintf(&b, "- CDN references replaced: %d\n", stats.CDNRefsReplaced)
	fmt.Fprintf(&b, "- Replacement modules generated: %d\n\n", stats.PolyfillsGenerated)

	if len(removedDeps) > 0 {
		b.WriteString("## Removed dependencies\n\n")
		for _, d := range removedDeps {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}

	if len(analysis.Recommendations) > 0 {
		b.WriteString("## Follow-ups\n\n")
		for _, r := range analysis.Recommendations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Next steps\n\n")
	b.WriteString("1. Copy `.env.example` to `.env` and fill in the values.\n")
	b.WriteString("2. `npm install && npm run dev` to verify locally.\n")
	b.WriteString("3. `docker build -t " + sanitizeTag(projectName) + " .` to produce a deployable image.\n")
	return b.String()
}

func sanitizeTag(name string) string {
	out := strings.ToLower(strings.TrimSpace(name))
	out = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, out)
	if out == "" {
		out = "app"
	}
	return out
}
