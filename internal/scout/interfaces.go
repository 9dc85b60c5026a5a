package scout

import (
	"context"
	"time"
)

// Fetcher performs one bounded diagnostic GET.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResult, error)
}

// BlobStore archives raw page bodies and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes staged-candidate notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing cooldown logic).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher digests raw page bodies so the walk can spot pages it already saw
// under a different URL.
type Hasher interface {
	Hash(data []byte) (string, error)
}
