package book

import (
	"context"
	"errors"
	"log"

	"bookvault/internal/asset"
	"bookvault/internal/upload"
)

// Service coordinates the metadata record, the remote assets and the staged
// temp files of a book.
//
// Every operation runs its remote calls one after another and stops at the
// first failure. Assets uploaded earlier in a failed call are not rolled back.
// Staged files passed to Create or Update are always removed before the call
// returns. Service holds no request state and is safe for concurrent use.
type Service struct {
	repo   Repository
	assets AssetStore
}

// NewService creates a new book service.
func NewService(repo Repository, assets AssetStore) *Service {
	return &Service{repo: repo, assets: assets}
}

// List returns books matching the query.
func (s *Service) List(ctx context.Context, q Query) ([]Book, error) {
	books, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, persistenceError("list books", err)
	}
	return books, nil
}

// Get returns a book by id.
func (s *Service) Get(ctx context.Context, id string) (Book, error) {
	return s.find(ctx, id)
}

// Create uploads the cover and the document, then persists the record.
func (s *Service) Create(ctx context.Context, in CreateInput) (string, error) {
	defer release(in.Cover, in.Document)

	staged := upload.Files{upload.FieldCoverImage: in.Cover, upload.FieldFile: in.Document}
	for _, field := range []string{upload.FieldCoverImage, upload.FieldFile} {
		if _, err := staged.Require(field); err != nil {
			return "", stagingError(err)
		}
	}
	if err := validateCover(in.Cover); err != nil {
		return "", err
	}
	if err := validateInput(in); err != nil {
		return "", err
	}

	cover, err := s.assets.Upload(ctx, in.Cover.Path, asset.KindImage, in.Cover.Name(), in.Cover.Subtype())
	if err != nil {
		return "", upstreamError("upload cover", err)
	}

	doc, err := s.assets.Upload(ctx, in.Document.Path, asset.KindDocument, in.Document.Name(), asset.DocumentFormat)
	if err != nil {
		return "", upstreamError("upload document", err)
	}

	created, err := s.repo.Create(ctx, Book{
		Title:       in.Title,
		Genre:       in.Genre,
		Description: in.Description,
		CoverImage:  cover,
		Document:    doc,
		OwnerID:     in.OwnerID,
	})
	if err != nil {
		return "", persistenceError("create book", err)
	}

	log.Printf("book created id=%s owner_id=%s", created.ID, created.OwnerID)
	return created.ID, nil
}

// Update replaces the descriptive fields and any asset with a newly staged
// file. An old blob is destroyed before its replacement is uploaded.
func (s *Service) Update(ctx context.Context, in UpdateInput) (Book, error) {
	defer release(in.Cover, in.Document)

	current, err := s.find(ctx, in.BookID)
	if err != nil {
		return Book{}, err
	}
	if err := authorizeOwner(current, in.RequesterID); err != nil {
		return Book{}, err
	}
	if err := validateCover(in.Cover); err != nil {
		return Book{}, err
	}
	if err := validateInput(in.Fields); err != nil {
		return Book{}, err
	}

	next := current
	if in.Fields.Title != nil {
		next.Title = *in.Fields.Title
	}
	if in.Fields.Genre != nil {
		next.Genre = *in.Fields.Genre
	}
	if in.Fields.Description != nil {
		next.Description = in.Fields.Description
	}

	if in.Cover != nil {
		next.CoverImage, err = s.replace(ctx, current.CoverImage.URL, asset.KindImage, in.Cover, in.Cover.Subtype())
		if err != nil {
			return Book{}, err
		}
	}
	if in.Document != nil {
		next.Document, err = s.replace(ctx, current.Document.URL, asset.KindDocument, in.Document, asset.DocumentFormat)
		if err != nil {
			return Book{}, err
		}
	}

	updated, err := s.repo.UpdateByID(ctx, in.BookID, next)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Book{}, ErrNotFound
		}
		return Book{}, persistenceError("update book", err)
	}

	log.Printf("book updated id=%s cover_replaced=%t file_replaced=%t", updated.ID, in.Cover != nil, in.Document != nil)
	return updated, nil
}

// Delete destroys both remote assets and then the record. If either destroy
// fails the record is left in place.
func (s *Service) Delete(ctx context.Context, bookID, requesterID string) (DeleteResult, error) {
	current, err := s.find(ctx, bookID)
	if err != nil {
		return DeleteResult{}, err
	}
	if err := authorizeOwner(current, requesterID); err != nil {
		return DeleteResult{}, err
	}

	coverID, err := asset.PublicID(current.CoverImage.URL, asset.KindImage)
	if err != nil {
		return DeleteResult{}, upstreamError("derive cover id", err)
	}
	docID, err := asset.PublicID(current.Document.URL, asset.KindDocument)
	if err != nil {
		return DeleteResult{}, upstreamError("derive document id", err)
	}

	if err := s.assets.Destroy(ctx, coverID, asset.KindImage); err != nil {
		return DeleteResult{}, upstreamError("destroy cover", err)
	}
	if err := s.assets.Destroy(ctx, docID, asset.KindDocument); err != nil {
		return DeleteResult{}, upstreamError("destroy document", err)
	}

	if err := s.repo.DeleteByID(ctx, bookID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return DeleteResult{}, ErrNotFound
		}
		return DeleteResult{}, persistenceError("delete book", err)
	}

	log.Printf("book deleted id=%s", bookID)
	return DeleteResult{ID: bookID, Message: "deleted"}, nil
}

// replace destroys the blob behind oldURL, uploads staged in its place and
// removes the staged file.
func (s *Service) replace(ctx context.Context, oldURL string, kind asset.Kind, staged *upload.TempFile, format string) (asset.Reference, error) {
	oldID, err := asset.PublicID(oldURL, kind)
	if err != nil {
		return asset.Reference{}, upstreamError("derive "+kind.String()+" id", err)
	}
	if err := s.assets.Destroy(ctx, oldID, kind); err != nil {
		return asset.Reference{}, upstreamError("destroy "+kind.String(), err)
	}

	ref, err := s.assets.Upload(ctx, staged.Path, kind, staged.Name(), format)
	if err != nil {
		return asset.Reference{}, upstreamError("upload "+kind.String(), err)
	}

	release(staged)
	return ref, nil
}

func (s *Service) find(ctx context.Context, id string) (Book, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Book{}, ErrNotFound
		}
		return Book{}, persistenceError("find book", err)
	}
	return b, nil
}

func validateCover(cover *upload.TempFile) error {
	if cover != nil && !cover.IsImage() {
		return newValidationError(upload.FieldCoverImage, "%s must be an image", upload.FieldCoverImage)
	}
	return nil
}

// release removes staged files. Failures are logged by upload.Release and
// never replace the error being returned.
func release(files ...*upload.TempFile) {
	_ = upload.Release(files...)
}
