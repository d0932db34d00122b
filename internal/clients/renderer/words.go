package renderer

import "strings"

// splitTriggerWords flattens a trigger-word array that may itself contain
// comma-joined entries, trimming and dropping empties.
func splitTriggerWords(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
