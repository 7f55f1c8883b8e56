package packager

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	"liberator/internal/analyzer"
	"liberator/internal/cleaner"
	"liberator/internal/snapshot"
)

// Input carries everything the packager needs to assemble the deliverable.
type Input struct {
	ProjectName string
	Files       *snapshot.Snapshot
	Analysis    analyzer.Result
	ScoreAfter  int
	Stats       cleaner.Stats
	RemovedDeps []string
	Now         time.Time
}

// Artifact filenames generated next to the project tree inside the archive.
const (
	ArtifactDockerfile = "Dockerfile"
	ArtifactNginxConf  = "nginx.conf"
	ArtifactEnvExample = ".env.example"
	ArtifactReport     = "LIBERATION_REPORT.md"
)

// Package assembles the final zip: the cleaned file tree under a single
// project root plus the four generated artifacts. Archive generation is a
// single terminal step; any failure aborts and no partial archive surfaces.
func Package(in Input) ([]byte, error) {
	if in.Files == nil || in.Files.Len() == 0 {
		return nil, fmt.Errorf("packager: empty file set")
	}
	name := sanitizeTag(in.ProjectName)
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(rel string, content []byte) error {
		w, err := zw.Create(name + "/" + rel)
		if err != nil {
			return fmt.Errorf("packager: create %s: %w", rel, err)
		}
		if _, err := w.Write(content); err != nil {
			return fmt.Errorf("packager: write %s: %w", rel, err)
		}
		return nil
	}

	for _, p := range in.Files.Paths() {
		entry, _ := in.Files.Get(p)
		if err := write(p, entry.Content); err != nil {
			return nil, err
		}
	}

	generated := map[string]string{
		ArtifactDockerfile: Dockerfile(in.ProjectName),
		ArtifactNginxConf:  NginxConf(),
		ArtifactEnvExample: EnvTemplate(in.Files),
		ArtifactReport:     Report(in.ProjectName, in.Analysis, in.ScoreAfter, in.Stats, in.RemovedDeps, in.Now),
	}
	for _, rel := range []string{ArtifactDockerfile, ArtifactNginxConf, ArtifactEnvExample, ArtifactReport} {
		if in.Files.Has(rel) {
			// The cleaned tree already carries one; the generated artifact
			// would clash inside the archive, so the tree's version wins.
			continue
		}
		if err := write(rel, []byte(generated[rel])); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("packager: finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
