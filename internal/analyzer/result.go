package analyzer

// Severity classifies how strongly a finding couples the project to the
// proprietary platform.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Issue is one detected proprietary signature. Issues are produced only by
// the analyzer and are read-only downstream.
type Issue struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	FilePath    string   `json:"file_path"`
	Description string   `json:"description"`
}

// DependencyStatus classifies a declared manifest dependency.
type DependencyStatus string

const (
	DependencyCompatible   DependencyStatus = "compatible"
	DependencyIncompatible DependencyStatus = "incompatible"
	DependencyUnknown      DependencyStatus = "unknown"
)

// DependencyFinding is one direct package-manifest entry and its
// compatibility classification. Transitive dependencies are out of scope.
type DependencyFinding struct {
	Name            string           `json:"name"`
	DeclaredVersion string           `json:"declared_version"`
	Status          DependencyStatus `json:"status"`
}

// Result is the full analysis of one snapshot.
type Result struct {
	// Score is the portability score, 0..100. 100 means no detected
	// proprietary coupling.
	Score            int                 `json:"score"`
	Issues           []Issue             `json:"issues"`
	Dependencies     []DependencyFinding `json:"dependencies"`
	FilesToRemove    []string            `json:"files_to_remove"`
	ProprietaryCDNs  []string            `json:"proprietary_cdns"`
	Recommendations  []string            `json:"recommendations"`
	DetectedPlatform string              `json:"detected_platform,omitempty"`
}
