package snapshot

import (
	"context"

	"gorm.io/gorm"

	"github.com/construxio/sitehub-backend/internal/eventstream"
)

// TransactionalHandler runs the dispatcher inside one transaction and one
// fresh unit of work per envelope. The consumer acknowledges only after this
// returns nil, so an envelope is either fully applied or redelivered.
func TransactionalHandler(db *gorm.DB, d *Dispatcher) func(ctx context.Context, env eventstream.Envelope) error {
	return func(ctx context.Context, env eventstream.Envelope) error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return d.Dispatch(ctx, NewUnitOfWork(tx), env)
		})
	}
}
