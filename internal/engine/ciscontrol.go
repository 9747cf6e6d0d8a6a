package engine

import "regexp"

// CIS control extraction. Policy names in CIS benchmark packs carry a
// control number in one of a few shapes: "CIS - 1.1 - Ensure ...",
// "CIS 5.2.1 Ensure ...", "Benchmark: 2.3 ...", or a bare leading
// "1.1 Ensure ...". The marker pattern is tried on the name first, then the
// bare leading-token fallback, then the marker pattern on the description.
var (
	cisMarkerRe   = regexp.MustCompile(`(?i)(?:CIS|Benchmark)\s*[-:]?\s*(\d+(?:\.\d+)+)`)
	cisFallbackRe = regexp.MustCompile(`^(\d+(?:\.\d+)+)\s`)
)

// extractCISControl pulls the control-number token out of a policy's name
// or description. Returns nil when no token is present.
func extractCISControl(name, description string) *string {
	m := cisMarkerRe.FindStringSubmatch(name)
	if m == nil {
		m = cisFallbackRe.FindStringSubmatch(name)
	}

	if m == nil {
		m = cisMarkerRe.FindStringSubmatch(description)
	}

	if m == nil {
		return nil
	}

	return &m[1]
}
