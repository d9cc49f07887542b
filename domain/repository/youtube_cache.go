package repository

import (
	"context"
	"time"
)

// IPlaylistCache remembers which uploads playlist belongs to a channel handle
type IPlaylistCache interface {
	// GetPlaylistID returns the cached id and true on a hit.
	GetPlaylistID(ctx context.Context, handle string) (string, bool, error)
	SetPlaylistID(ctx context.Context, handle, playlistID string, ttl time.Duration) error
}
