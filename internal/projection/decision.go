package projection

import (
	"strings"
	"time"
)

// ShouldApply decides whether an incoming fact is newer than what a row
// already reflects for one contributing stream. Strictly newer wins; equal or
// older is a no-op, which is what makes late arrivals from an independent
// stream harmless.
func ShouldApply(watermark *time.Time, eventAt time.Time) bool {
	if watermark == nil {
		return true
	}
	return eventAt.After(*watermark)
}

// DisplayName folds the user's name parts into the denormalized column.
func DisplayName(firstName, lastName string) string {
	return strings.TrimSpace(firstName + " " + lastName)
}
