package services

import (
	"github.com/samber/lo"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
)

// Merge deduplicates records by ID (first occurrence wins), optionally drops
// records without an average score, then sorts by score descending with ties
// on ascending ID and truncates to limit.
func Merge(records []domain.MediaRecord, dropUnscored bool, limit int) []domain.MediaRecord {
	if dropUnscored {
		records = lo.Filter(records, func(m domain.MediaRecord, _ int) bool {
			return m.HasScore()
		})
	}
	return domain.NewResultSet(records...).Ranked(limit)
}
