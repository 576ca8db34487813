package ports

import (
	"context"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
)

// CatalogSource loads the local anime catalog used by the scoring path.
type CatalogSource interface {
	LoadCatalog(ctx context.Context) ([]domain.CatalogEntry, error)
}
