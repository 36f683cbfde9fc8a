package app

import "github.com/ben-ranford/islet/internal/report"

type Mode string

const (
	ModeTransform Mode = "transform"
	ModeScan      Mode = "scan"
)

type Request struct {
	Mode Mode
	// Root is the project root. Empty means: search upward from the
	// document for transform, the working directory for scan.
	Root       string
	ConfigPath string
	Verbose    bool
	Transform  TransformRequest
	Scan       ScanRequest
}

type TransformRequest struct {
	File string
}

type ScanRequest struct {
	Format          report.Format
	IncludePatterns []string
	ExcludePatterns []string
}

func DefaultRequest() Request {
	return Request{
		Mode: ModeScan,
		Scan: ScanRequest{
			Format: report.FormatTable,
		},
	}
}
