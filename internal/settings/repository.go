package settings

import "context"

// Repository persists the singleton record. Every write replaces the whole
// record; implementations never patch individual fields.
type Repository interface {
	// Load returns the stored record or ErrNotFound.
	Load(ctx context.Context) (CronSettings, error)

	// Save upserts the whole record.
	Save(ctx context.Context, s CronSettings) error

	// Create stores s only if no record exists yet and reports whether it
	// did. It must be atomic so concurrent seeders cannot overwrite each other.
	Create(ctx context.Context, s CronSettings) (bool, error)

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}
