package driven

import (
	"context"
	"time"
)

// DistributedLock serialises sync work across API and worker processes.
//
// The runner holds "task:<id>" for a whole run and "record:<id>:<channel>"
// around one record step. The scheduler takes "schedule:<name>" per tick and
// "recovery" per sweep.
type DistributedLock interface {
	// Acquire takes the named lock for ttl without blocking.
	// Returns false if another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops the named lock. Releasing a lock that is not held is not an error.
	Release(ctx context.Context, name string) error

	// Extend pushes the expiry of a held lock out to ttl from now.
	// Backends without expiry (advisory locks) only check that the lock is held.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks the lock backend
	Ping(ctx context.Context) error
}
