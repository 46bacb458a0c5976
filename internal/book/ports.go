package book

import (
	"context"

	"bookvault/internal/asset"
)

//go:generate mockgen -source=ports.go -destination=mock_ports_test.go -package=book

// Repository defines the contract for book metadata storage.
// FindByID, UpdateByID and DeleteByID return ErrNotFound for an unknown id.
type Repository interface {
	List(ctx context.Context, q Query) ([]Book, error)
	FindByID(ctx context.Context, id string) (Book, error)
	Create(ctx context.Context, b Book) (Book, error)
	UpdateByID(ctx context.Context, id string, b Book) (Book, error)
	DeleteByID(ctx context.Context, id string) error
}

// AssetStore uploads and destroys blobs in the remote object store.
// Implementations must be safe for concurrent use.
type AssetStore interface {
	Upload(ctx context.Context, localPath string, kind asset.Kind, overrideName, format string) (asset.Reference, error)
	Destroy(ctx context.Context, publicID string, kind asset.Kind) error
}
