package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/Prayush09/ZiDraw/internal/config"
)

var ErrUnknownDriver = errors.New("unknown store driver")

// Record is one persisted chat message of a room. Message holds an encoded
// operation; the store never looks inside it.
type Record struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"roomId"`
	Message   string    `json:"message"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the durable per-room append-only log.
type Store interface {
	// Append adds message to the end of the room's log.
	Append(ctx context.Context, roomID, userID, message string) error
	// List returns the room's log in append order. An unknown room has an
	// empty log.
	List(ctx context.Context, roomID string) ([]Record, error)
	// Purge deletes the room's log.
	Purge(ctx context.Context, roomID string) error
	Close() error
}

// Open connects the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	glog.Infof("[store] opening %s store", cfg.Driver)
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "postgres", "mysql":
		return OpenSQL(ctx, cfg.Driver, cfg.DSN)
	case "mongo":
		return OpenMongo(ctx, cfg.DSN, cfg.Database)
	}
	return nil, fmt.Errorf("%q: %w", cfg.Driver, ErrUnknownDriver)
}
