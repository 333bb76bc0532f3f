package feedback

import (
	"context"

	"tuning-backend/internal/shared/timewindow"
)

// Repo reads feedback rows. Rows are written only by the import registry,
// together with the import's completion.
type Repo interface {
	ListWindow(ctx context.Context, w timewindow.Window) (Batch, error)
}
