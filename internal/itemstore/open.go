package itemstore

import (
	"context"
	"database/sql"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/erazemk/lostfound/internal/config"
)

// Backend is the item feed chosen at startup, held for the process lifetime.
type Backend struct {
	Feed
	Kind   Kind
	closer io.Closer
}

// Close releases backend resources.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// OpenParams configures backend selection.
type OpenParams struct {
	Remote config.RemoteConfig
	DB     *sql.DB
	Logger zerolog.Logger
	// PingTimeout bounds the startup reachability check of the remote backend.
	PingTimeout time.Duration
}

// Open selects the backend once. The remote backend is used when its
// parameters are present, free of placeholders, and it answers a ping;
// otherwise the local backend is used for the rest of the process. There is
// no later re-detection.
func Open(ctx context.Context, params OpenParams) *Backend {
	logger := params.Logger.With().Str("component", "itemstore").Logger()

	if err := params.Remote.Usable(); err != nil {
		logger.Warn().Err(err).Msg("Remote backend unavailable, using local storage")
		return openLocal(params)
	}

	client := NewRedisClient(params.Remote)

	timeout := params.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		logger.Warn().Err(err).Str("addr", params.Remote.Addr).Msg("Remote backend unreachable, using local storage")
		return openLocal(params)
	}

	remote := NewRemote(RemoteParams{
		Client:     client,
		Collection: params.Remote.Collection,
		Coalesce:   DefaultCoalesce,
		Logger:     params.Logger,
	})
	logger.Info().Str("addr", params.Remote.Addr).Str("collection", remote.collection).Msg("Remote backend initialized")
	return &Backend{Feed: remote, Kind: KindRemote, closer: remote}
}

func openLocal(params OpenParams) *Backend {
	return &Backend{
		Feed: NewNotifier(NewLocal(params.DB), params.Logger),
		Kind: KindLocal,
	}
}
