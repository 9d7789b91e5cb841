package domain

import (
	"context"
	"io"
	"time"
)

// TradeJournal persists executed trades for audit. It is write-only: the
// ledger is never rebuilt from it.
type TradeJournal interface {
	RecordTrade(ctx context.Context, rec TradeRecord) error
}

// AuditStore appends audit events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}

// LockManager provides a distributed lock.
type LockManager interface {
	// Acquire obtains the lock or returns ErrLockHeld. The returned func
	// releases it and is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Publisher sends payloads to named channels.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// SignalBus is a Publisher that can also subscribe and append to streams.
type SignalBus interface {
	Publisher
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// BlobWriter stores objects.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves objects. Get returns ErrNotFound for missing keys.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
}
