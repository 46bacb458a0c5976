package book

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"bookvault/internal/asset"
	"bookvault/internal/upload"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	coverURL = "https://cdn.example.com/book-covers/abc123.png"
	docURL   = "https://cdn.example.com/book-pdfs/doc987.pdf"
)

func existingBook() Book {
	desc := "A desert planet"
	return Book{
		ID:          "book-1",
		Title:       "Dune",
		Genre:       "Science Fiction",
		Description: &desc,
		CoverImage:  asset.Reference{URL: coverURL, Kind: asset.KindImage},
		Document:    asset.Reference{URL: docURL, Kind: asset.KindDocument},
		OwnerID:     "owner-1",
	}
}

// stage writes a temp file the way upload.Stager would.
func stage(t *testing.T, field, name, mimeType string) *upload.TempFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))
	return &upload.TempFile{Field: field, Path: path, Filename: name, MimeType: mimeType, SizeBytes: 4}
}

func stageCover(t *testing.T) *upload.TempFile {
	return stage(t, upload.FieldCoverImage, "c0ffee.png", "image/png")
}

func stageDocument(t *testing.T) *upload.TempFile {
	return stage(t, upload.FieldFile, "d0c.pdf", "application/pdf")
}

func assertReleased(t *testing.T, files ...*upload.TempFile) {
	t.Helper()
	for _, f := range files {
		assert.NoFileExists(t, f.Path)
	}
}

func newMockService(t *testing.T) (*Service, *MockRepository, *MockAssetStore) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	assets := NewMockAssetStore(ctrl)
	return NewService(repo, assets), repo, assets
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc, repo, assets := newMockService(t)
		cover, doc := stageCover(t), stageDocument(t)
		desc := "Spice"

		newCover := asset.Reference{URL: "https://cdn.example.com/book-covers/c0ffee.png", Kind: asset.KindImage}
		newDoc := asset.Reference{URL: "https://cdn.example.com/book-pdfs/d0c.pdf", Kind: asset.KindDocument}

		gomock.InOrder(
			assets.EXPECT().Upload(gomock.Any(), cover.Path, asset.KindImage, "c0ffee", "png").Return(newCover, nil),
			assets.EXPECT().Upload(gomock.Any(), doc.Path, asset.KindDocument, "d0c", "pdf").Return(newDoc, nil),
			repo.EXPECT().Create(gomock.Any(), Book{
				Title:       "Dune",
				Genre:       "Science Fiction",
				Description: &desc,
				CoverImage:  newCover,
				Document:    newDoc,
				OwnerID:     "owner-1",
			}).Return(Book{ID: "book-1"}, nil),
		)

		id, err := svc.Create(ctx, CreateInput{
			Title: "Dune", Genre: "Science Fiction", Description: &desc, OwnerID: "owner-1",
			Cover: cover, Document: doc,
		})
		require.NoError(t, err)
		assert.Equal(t, "book-1", id)
		assertReleased(t, cover, doc)
	})

	t.Run("missing file", func(t *testing.T) {
		svc, _, _ := newMockService(t)
		cover := stageCover(t)

		_, err := svc.Create(ctx, CreateInput{Title: "Dune", Genre: "SF", OwnerID: "owner-1", Cover: cover})
		require.ErrorIs(t, err, ErrValidation)
		assert.EqualError(t, err, "file is required")
		assert.Equal(t, http.StatusBadRequest, StatusFor(err))
		assertReleased(t, cover)
	})

	t.Run("missing cover", func(t *testing.T) {
		svc, _, _ := newMockService(t)
		doc := stageDocument(t)

		_, err := svc.Create(ctx, CreateInput{Title: "Dune", Genre: "SF", OwnerID: "owner-1", Document: doc})
		assert.EqualError(t, err, "coverImage is required")
		assertReleased(t, doc)
	})

	t.Run("cover is not an image", func(t *testing.T) {
		svc, _, _ := newMockService(t)
		cover := stage(t, upload.FieldCoverImage, "cover.pdf", "application/pdf")
		doc := stageDocument(t)

		_, err := svc.Create(ctx, CreateInput{Title: "Dune", Genre: "SF", OwnerID: "owner-1", Cover: cover, Document: doc})
		assert.EqualError(t, err, "coverImage must be an image")
		assertReleased(t, cover, doc)
	})

	t.Run("missing title", func(t *testing.T) {
		svc, _, _ := newMockService(t)
		cover, doc := stageCover(t), stageDocument(t)

		_, err := svc.Create(ctx, CreateInput{Genre: "SF", OwnerID: "owner-1", Cover: cover, Document: doc})
		require.ErrorIs(t, err, ErrValidation)
		assert.EqualError(t, err, "title is required")
		assertReleased(t, cover, doc)
	})

	t.Run("document upload fails after cover uploaded", func(t *testing.T) {
		svc, _, assets := newMockService(t)
		cover, doc := stageCover(t), stageDocument(t)

		gomock.InOrder(
			assets.EXPECT().Upload(gomock.Any(), cover.Path, asset.KindImage, gomock.Any(), "png").
				Return(asset.Reference{URL: coverURL, Kind: asset.KindImage}, nil),
			assets.EXPECT().Upload(gomock.Any(), doc.Path, asset.KindDocument, gomock.Any(), "pdf").
				Return(asset.Reference{}, errors.New("connection reset")),
		)

		_, err := svc.Create(ctx, CreateInput{Title: "Dune", Genre: "SF", OwnerID: "owner-1", Cover: cover, Document: doc})
		require.ErrorIs(t, err, ErrUpstreamStore)
		assert.Equal(t, http.StatusInternalServerError, StatusFor(err))
		assert.Equal(t, "internal server error", PublicMessage(err))
		assertReleased(t, cover, doc)
	})

	t.Run("persistence fails", func(t *testing.T) {
		svc, repo, assets := newMockService(t)
		cover, doc := stageCover(t), stageDocument(t)

		assets.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(asset.Reference{URL: coverURL, Kind: asset.KindImage}, nil).Times(2)
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(Book{}, errors.New("db down"))

		_, err := svc.Create(ctx, CreateInput{Title: "Dune", Genre: "SF", OwnerID: "owner-1", Cover: cover, Document: doc})
		require.ErrorIs(t, err, ErrPersistence)
		assert.NotErrorIs(t, err, ErrUpstreamStore)
		assertReleased(t, cover, doc)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		svc, repo, _ := newMockService(t)
		cover := stageCover(t)
		repo.EXPECT().FindByID(gomock.Any(), "missing").Return(Book{}, ErrNotFound)

		_, err := svc.Update(ctx, UpdateInput{BookID: "missing", RequesterID: "owner-1", Cover: cover})
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, http.StatusNotFound, StatusFor(err))
		assertReleased(t, cover)
	})

	t.Run("not the owner", func(t *testing.T) {
		svc, repo, _ := newMockService(t)
		cover, doc := stageCover(t), stageDocument(t)
		title := "Stolen"
		repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(existingBook(), nil)

		_, err := svc.Update(ctx, UpdateInput{
			BookID: "book-1", RequesterID: "intruder",
			Fields: UpdateFields{Title: &title}, Cover: cover, Document: doc,
		})
		require.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, http.StatusForbidden, StatusFor(err))
		assertReleased(t, cover, doc)
	})

	t.Run("new cover keeps document", func(t *testing.T) {
		svc, repo, assets := newMockService(t)
		cover := stageCover(t)
		current := existingBook()
		newCover := asset.Reference{URL: "https://cdn.example.com/book-covers/c0ffee.png", Kind: asset.KindImage}

		want := current
		want.CoverImage = newCover

		gomock.InOrder(
			repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(current, nil),
			assets.EXPECT().Destroy(gomock.Any(), "book-covers/abc123", asset.KindImage).Return(nil),
			assets.EXPECT().Upload(gomock.Any(), cover.Path, asset.KindImage, "c0ffee", "png").Return(newCover, nil),
			repo.EXPECT().UpdateByID(gomock.Any(), "book-1", want).Return(want, nil),
		)

		got, err := svc.Update(ctx, UpdateInput{BookID: "book-1", RequesterID: "owner-1", Cover: cover})
		require.NoError(t, err)
		assert.Equal(t, current.Document, got.Document)
		assert.Equal(t, newCover, got.CoverImage)
		assertReleased(t, cover)
	})

	t.Run("new document", func(t *testing.T) {
		svc, repo, assets := newMockService(t)
		doc := stageDocument(t)
		current := existingBook()
		newDoc := asset.Reference{URL: "https://cdn.example.com/book-pdfs/d0c.pdf", Kind: asset.KindDocument}

		gomock.InOrder(
			repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(current, nil),
			assets.EXPECT().Destroy(gomock.Any(), "book-pdfs/doc987.pdf", asset.KindDocument).Return(nil),
			assets.EXPECT().Upload(gomock.Any(), doc.Path, asset.KindDocument, "d0c", "pdf").Return(newDoc, nil),
			repo.EXPECT().UpdateByID(gomock.Any(), "book-1", gomock.Any()).DoAndReturn(
				func(_ context.Context, _ string, b Book) (Book, error) { return b, nil },
			),
		)

		got, err := svc.Update(ctx, UpdateInput{BookID: "book-1", RequesterID: "owner-1", Document: doc})
		require.NoError(t, err)
		assert.Equal(t, current.CoverImage, got.CoverImage)
		assert.Equal(t, newDoc, got.Document)
	})

	t.Run("destroy fails before any upload", func(t *testing.T) {
		svc, repo, assets := newMockService(t)
		cover := stageCover(t)

		repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(existingBook(), nil)
		assets.EXPECT().Destroy(gomock.Any(), "book-covers/abc123", asset.KindImage).Return(errors.New("timeout"))

		_, err := svc.Update(ctx, UpdateInput{BookID: "book-1", RequesterID: "owner-1", Cover: cover})
		require.ErrorIs(t, err, ErrUpstreamStore)
		assertReleased(t, cover)
	})

	t.Run("malformed stored url", func(t *testing.T) {
		svc, repo, _ := newMockService(t)
		cover := stageCover(t)
		current := existingBook()
		current.CoverImage.URL = "abc123.png"

		repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(current, nil)

		_, err := svc.Update(ctx, UpdateInput{BookID: "book-1", RequesterID: "owner-1", Cover: cover})
		require.ErrorIs(t, err, ErrUpstreamStore)
		assert.ErrorIs(t, err, asset.ErrMalformedURL)
		assertReleased(t, cover)
	})

	t.Run("fields only", func(t *testing.T) {
		svc, repo, _ := newMockService(t)
		current := existingBook()
		title, genre := "Dune Messiah", "Classic"

		want := current
		want.Title = title
		want.Genre = genre

		repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(current, nil)
		repo.EXPECT().UpdateByID(gomock.Any(), "book-1", want).Return(want, nil)

		got, err := svc.Update(ctx, UpdateInput{
			BookID: "book-1", RequesterID: "owner-1",
			Fields: UpdateFields{Title: &title, Genre: &genre},
		})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("empty title", func(t *testing.T) {
		svc, repo, _ := newMockService(t)
		empty := ""
		repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(existingBook(), nil)

		_, err := svc.Update(ctx, UpdateInput{BookID: "book-1", RequesterID: "owner-1", Fields: UpdateFields{Title: &empty}})
		require.ErrorIs(t, err, ErrValidation)
		assert.EqualError(t, err, "title must not be empty")
	})

	t.Run("record vanished before write", func(t *testing.T) {
		svc, repo, _ := newMockService(t)
		title := "x"
		repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(existingBook(), nil)
		repo.EXPECT().UpdateByID(gomock.Any(), "book-1", gomock.Any()).Return(Book{}, ErrNotFound)

		_, err := svc.Update(ctx, UpdateInput{BookID: "book-1", RequesterID: "owner-1", Fields: UpdateFields{Title: &title}})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("lookup fails", func(t *testing.T) {
		svc, repo, _ := newMockService(t)
		repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(Book{}, errors.New("conn refused"))

		_, err := svc.Update(ctx, UpdateInput{BookID: "book-1", RequesterID: "owner-1"})
		require.ErrorIs(t, err, ErrPersistence)
		assert.Equal(t, http.StatusInternalServerError, StatusFor(err))
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc, repo, assets := newMockService(t)

		gomock.InOrder(
			repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(existingBook(), nil),
			assets.EXPECT().Destroy(gomock.Any(), "book-covers/abc123", asset.KindImage).Return(nil),
			assets.EXPECT().Destroy(gomock.Any(), "book-pdfs/doc987.pdf", asset.KindDocument).Return(nil),
			repo.EXPECT().DeleteByID(gomock.Any(), "book-1").Return(nil),
		)

		res, err := svc.Delete(ctx, "book-1", "owner-1")
		require.NoError(t, err)
		assert.Equal(t, DeleteResult{ID: "book-1", Message: "deleted"}, res)
	})

	t.Run("document destroy fails keeps record", func(t *testing.T) {
		svc, repo, assets := newMockService(t)

		repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(existingBook(), nil)
		assets.EXPECT().Destroy(gomock.Any(), "book-covers/abc123", asset.KindImage).Return(nil)
		assets.EXPECT().Destroy(gomock.Any(), "book-pdfs/doc987.pdf", asset.KindDocument).Return(errors.New("503"))

		_, err := svc.Delete(ctx, "book-1", "owner-1")
		assert.ErrorIs(t, err, ErrUpstreamStore)
	})

	t.Run("malformed document url destroys nothing", func(t *testing.T) {
		svc, repo, _ := newMockService(t)
		current := existingBook()
		current.Document.URL = "https://cdn.example.com/"

		repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(current, nil)

		_, err := svc.Delete(ctx, "book-1", "owner-1")
		assert.ErrorIs(t, err, ErrUpstreamStore)
	})

	t.Run("not the owner", func(t *testing.T) {
		svc, repo, _ := newMockService(t)
		repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(existingBook(), nil)

		_, err := svc.Delete(ctx, "book-1", "someone-else")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("anonymous requester", func(t *testing.T) {
		svc, repo, _ := newMockService(t)
		repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(existingBook(), nil)

		_, err := svc.Delete(ctx, "book-1", "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("not found", func(t *testing.T) {
		svc, repo, _ := newMockService(t)
		repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(Book{}, ErrNotFound)

		_, err := svc.Delete(ctx, "book-1", "owner-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("record delete fails", func(t *testing.T) {
		svc, repo, assets := newMockService(t)
		repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(existingBook(), nil)
		assets.EXPECT().Destroy(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
		repo.EXPECT().DeleteByID(gomock.Any(), "book-1").Return(errors.New("db down"))

		_, err := svc.Delete(ctx, "book-1", "owner-1")
		assert.ErrorIs(t, err, ErrPersistence)
	})
}

func TestService_ListAndGet(t *testing.T) {
	svc, repo, _ := newMockService(t)
	ctx := context.Background()

	repo.EXPECT().List(gomock.Any(), Query{Genre: "SF", Limit: 20}).Return([]Book{existingBook()}, nil)
	books, err := svc.List(ctx, Query{Genre: "SF", Limit: 20})
	require.NoError(t, err)
	assert.Len(t, books, 1)

	repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
	_, err = svc.List(ctx, Query{Limit: 20})
	assert.ErrorIs(t, err, ErrPersistence)

	repo.EXPECT().FindByID(gomock.Any(), "book-1").Return(existingBook(), nil)
	b, err := svc.Get(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", b.OwnerID)
}
