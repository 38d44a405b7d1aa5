package referral

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/salesforce"
)

// Repository persists referrals. Missing rows are reported as pgx.ErrNoRows.
type Repository interface {
	Create(ctx context.Context, r *Referral) error
	GetByID(ctx context.Context, id uuid.UUID) (*Referral, error)
	Update(ctx context.Context, r *Referral) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*Referral, int, error)
	Stats(ctx context.Context) (*Stats, error)

	// ListForSync returns referrals without a remote id, oldest first, plus
	// those holding a simulated id when includeSimulated is set.
	ListForSync(ctx context.Context, includeSimulated bool, limit int) ([]*Referral, error)
	// RecordSync stores a remote id. It never clears or overwrites a live id;
	// a simulated id is only replaced by a live one. It reports whether the
	// row changed.
	RecordSync(ctx context.Context, id uuid.UUID, salesforceID string, mode salesforce.Mode, at time.Time) (bool, error)
	RecordSyncError(ctx context.Context, id uuid.UUID, msg string) error
}
