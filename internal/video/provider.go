package video

import (
	"context"
	"time"
)

// Provider allocates consultation rooms and short-lived join tokens. The
// core treats it as untrusted: failures surface to the caller and nothing
// is persisted until the provider confirms creation.
type Provider interface {
	CreateRoom(ctx context.Context, nameHint string, expiry time.Time) (roomID string, err error)
	CreateToken(ctx context.Context, roomID string, expiry time.Time) (token string, err error)
}
