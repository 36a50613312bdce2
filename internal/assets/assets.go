// Package assets implements the picture store behind picdrop: blobs are
// written under generated ids into a flat backing location, enumerated, served
// back by id, and deleted. Backends share one error taxonomy so the HTTP layer
// can map failures to status codes without knowing where bytes live.
package assets

import (
	"context"
	"errors"
	"io"
	"net/url"
	"time"
)

// DeliveryPrefix is the URL path under which stored assets are served.
const DeliveryPrefix = "/uploads/"

var (
	ErrNoPayload          = errors.New("no payload")
	ErrWriteFailed        = errors.New("write failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotFound           = errors.New("asset not found")
	ErrPathTraversal      = errors.New("invalid asset id")
)

// Asset is one stored blob as seen by clients.
type Asset struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Size int64  `json:"-"`
}

// Blob is an open stored asset ready for delivery. Callers must close Body.
type Blob struct {
	Body        io.ReadSeekCloser
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Store persists, enumerates and removes assets.
type Store interface {
	// Initialize acquires the backing location, creating it if absent.
	Initialize(ctx context.Context) error
	// Put writes payload under a new id derived from originalName.
	Put(ctx context.Context, payload []byte, originalName string) (Asset, error)
	// List returns every asset currently stored. Order is not stable.
	List(ctx context.Context) ([]Asset, error)
	// Delete removes the asset with the given id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
	// Open resolves an id for delivery.
	Open(ctx context.Context, id string) (*Blob, error)
}

// DeliveryURL returns the path clients use to fetch the asset with id.
func DeliveryURL(id string) string {
	return DeliveryPrefix + url.PathEscape(id)
}

func newAsset(id string, size int64) Asset {
	return Asset{ID: id, URL: DeliveryURL(id), Size: size}
}
