package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
)

// ErrNoMatch indicates the metadata service found nothing for a title.
var ErrNoMatch = errors.New("no metadata match")

// NoMatchError provides context for a failed title lookup.
type NoMatchError struct {
	Title string
}

func (e NoMatchError) Error() string {
	if e.Title == "" {
		return ErrNoMatch.Error()
	}
	return fmt.Sprintf("no metadata match found for title %q", e.Title)
}

func (e NoMatchError) Is(target error) bool {
	return target == ErrNoMatch
}

// MetadataProvider resolves a candidate title to its canonical media record.
type MetadataProvider interface {
	SearchByTitle(ctx context.Context, title string) (domain.MediaRecord, error)
}
