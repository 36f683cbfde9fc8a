package analysis

import "github.com/ben-ranford/islet/internal/config"

type Request struct {
	Root   string
	Config config.Config
	// Include and Exclude are root-relative globs over discovered documents.
	Include []string
	Exclude []string
}
