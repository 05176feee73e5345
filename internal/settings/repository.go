package settings

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Backend is the durable home of server settings.
type Backend interface {
	LoadServer(ctx context.Context, serverID string) (*Server, bool, error)
	SaveServer(ctx context.Context, server *Server) error
}

// Repository hands out private copies of server settings. Mutations become
// visible to other callers only through Save, which persists that one server.
type Repository struct {
	backend Backend
	cache   Cache
	logger  *zap.Logger
	loads   singleflight.Group
}

func NewRepository(backend Backend, cache Cache, logger *zap.Logger) *Repository {
	return &Repository{backend: backend, cache: cache, logger: logger}
}

// Get returns the settings for serverID, creating and persisting defaults the
// first time a server is seen.
func (r *Repository) Get(ctx context.Context, serverID string) (*Server, error) {
	if r.cache != nil {
		server, ok, err := r.cache.Get(ctx, serverID)
		if err != nil {
			r.logger.Warn("settings cache read failed", zap.String("server_id", serverID), zap.Error(err))
		} else if ok {
			return server, nil
		}
	}

	v, err, _ := r.loads.Do(serverID, func() (any, error) {
		server, found, err := r.backend.LoadServer(ctx, serverID)
		if err != nil {
			return nil, fmt.Errorf("load server %s: %w", serverID, err)
		}
		if !found {
			server = NewServer(serverID)
			if err := r.backend.SaveServer(ctx, server); err != nil {
				return nil, fmt.Errorf("create server %s: %w", serverID, err)
			}
			r.logger.Info("server settings created", zap.String("server_id", serverID))
		}
		r.fill(ctx, server)
		return server, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Server).Clone(), nil
}

func (r *Repository) Save(ctx context.Context, server *Server) error {
	if err := r.backend.SaveServer(ctx, server); err != nil {
		return fmt.Errorf("save server %s: %w", server.ID, err)
	}
	r.fill(ctx, server)
	return nil
}

func (r *Repository) fill(ctx context.Context, server *Server) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, server); err != nil {
		r.logger.Warn("settings cache write failed", zap.String("server_id", server.ID), zap.Error(err))
		_ = r.cache.Purge(ctx, server.ID)
	}
}
