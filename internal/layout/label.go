package layout

import (
	"strconv"
	"strings"
)

// DefaultMoreLabel is used when no template is configured.
const DefaultMoreLabel = "{moreCount} More"

// FormatMore substitutes {moreCount} and {count} in template.
// An empty template falls back to DefaultMoreLabel.
func FormatMore(template string, more, count int) string {
	if template == "" {
		template = DefaultMoreLabel
	}
	r := strings.NewReplacer(
		"{moreCount}", strconv.Itoa(more),
		"{count}", strconv.Itoa(count),
	)
	return r.Replace(template)
}
