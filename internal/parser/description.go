package parser

import "strings"

// noRefSentinel is the reference code banks emit when a row carries no
// merchant reference.
const noRefSentinel = "ITR"

// BuildDescription joins reference sub-fields in priority order, skipping
// blanks and the no-reference sentinel, and collapses runs of whitespace.
// When nothing survives the filter, the primary reference is returned
// verbatim, sentinel or not.
func BuildDescription(refs []string) string {
	var parts []string
	for _, ref := range refs {
		trimmed := strings.TrimSpace(ref)
		if trimmed == "" || trimmed == noRefSentinel {
			continue
		}
		parts = append(parts, trimmed)
	}

	if len(parts) == 0 {
		if len(refs) == 0 {
			return ""
		}
		return strings.TrimSpace(refs[0])
	}

	return collapseSpaces(strings.Join(parts, " "))
}

// collapseSpaces rewrites any run of whitespace as a single space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
