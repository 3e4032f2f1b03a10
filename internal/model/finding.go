package model

// ErrorCategory names a class of failure in the pattern catalog.
type ErrorCategory string

const (
	CategoryKernel      ErrorCategory = "kernel"
	CategorySELinux     ErrorCategory = "selinux"
	CategoryJVM         ErrorCategory = "jvm"
	CategorySystemd     ErrorCategory = "systemd"
	CategoryNetwork     ErrorCategory = "network"
	CategoryBoot        ErrorCategory = "boot"
	CategoryApplication ErrorCategory = "application"
	CategoryHardware    ErrorCategory = "hardware"
	CategoryContainer   ErrorCategory = "container"
)

// ErrorFinding is one classified error observation: a single category
// within a single source, with the evidence lines that support it.
type ErrorFinding struct {
	Source          LogSource     `json:"source"`
	Category        ErrorCategory `json:"category"`
	BaseSeverity    ImpactLevel   `json:"base_severity"`
	MatchedEvidence []string      `json:"matched_evidence"`
	// MatchCount is the number of corroborating matches, which may exceed
	// the number of retained excerpts.
	MatchCount    int     `json:"match_count"`
	RawConfidence float64 `json:"raw_confidence"`
}
