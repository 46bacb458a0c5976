package book

import (
	"time"

	"bookvault/internal/asset"
	"bookvault/internal/upload"
)

// Book is a catalog entry. A persisted Book always references two live blobs
// in the object store. OwnerID never changes after creation.
type Book struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Genre       string          `json:"genre"`
	Description *string         `json:"description,omitempty"`
	CoverImage  asset.Reference `json:"coverImage"`
	Document    asset.Reference `json:"file"`
	OwnerID     string          `json:"ownerId"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Query defines filters and pagination for listing books.
type Query struct {
	Genre   string
	OwnerID string
	After   CursorData
	Limit   int
}

// CreateInput carries everything Create needs. The staged files are owned by
// the Create call and released before it returns.
type CreateInput struct {
	Title       string  `validate:"required,max=255"`
	Genre       string  `validate:"required,max=255"`
	Description *string `validate:"omitempty,max=5000"`
	OwnerID     string  `validate:"required"`
	Cover       *upload.TempFile
	Document    *upload.TempFile
}

// UpdateFields holds the descriptive fields of an update. Nil keeps the stored value.
type UpdateFields struct {
	Title       *string `validate:"omitnil,min=1,max=255"`
	Genre       *string `validate:"omitnil,min=1,max=255"`
	Description *string `validate:"omitnil,max=5000"`
}

// UpdateInput carries an update request. Cover and Document are optional.
type UpdateInput struct {
	BookID      string
	RequesterID string
	Fields      UpdateFields
	Cover       *upload.TempFile
	Document    *upload.TempFile
}

// DeleteResult is returned by a successful Delete.
type DeleteResult struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
