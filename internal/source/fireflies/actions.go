package fireflies

import (
	"strings"

	"transcript_sync/internal/domain"
)

const minActionItemLen = 5

// parseActionItems splits the free-text action item block into individual
// items. Blank and very short lines are dropped, as are **Header** lines
// that group items by assignee.
func parseActionItems(block string) []domain.ActionItem {
	var items []domain.ActionItem

	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) < minActionItemLen {
			continue
		}
		if strings.HasPrefix(trimmed, "**") && strings.HasSuffix(trimmed, "**") {
			continue
		}

		clean := strings.TrimLeft(trimmed, "-")
		clean = strings.TrimLeft(clean, "•")
		clean = strings.TrimLeft(clean, "*")
		clean = strings.TrimSpace(clean)
		if clean == "" {
			continue
		}

		items = append(items, domain.ActionItem{Text: clean})
	}

	return items
}
