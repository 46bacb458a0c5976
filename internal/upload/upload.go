// Package upload stages multipart file parts as local temporary files.
package upload

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	FieldCoverImage = "coverImage"
	FieldFile       = "file"
)

var (
	// ErrMissing is returned when a required field has no staged file.
	ErrMissing = errors.New("file is required")
	// ErrTooLarge is returned when a file part exceeds the configured limit.
	ErrTooLarge = errors.New("file exceeds maximum upload size")
	// ErrBodyTooLarge is returned when the request body passed the server's
	// total size cap while the form was being read.
	ErrBodyTooLarge = errors.New("request body too large")
	// ErrInvalidForm is returned when the request body is not a readable multipart form.
	ErrInvalidForm = errors.New("invalid multipart form")
)

// FieldError reports a staging failure for one named field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	switch {
	case errors.Is(e.Err, ErrMissing):
		return fmt.Sprintf("%s is required", e.Field)
	case errors.Is(e.Err, ErrTooLarge):
		return fmt.Sprintf("%s exceeds maximum upload size", e.Field)
	default:
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// TempFile is a staged upload living on local disk for one request.
type TempFile struct {
	Field     string
	Path      string
	Filename  string
	MimeType  string
	SizeBytes int64
}

// Name returns the staged base name without extension.
func (f *TempFile) Name() string {
	base := filepath.Base(f.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Subtype returns the MIME subtype, e.g. "png" for image/png.
func (f *TempFile) Subtype() string {
	mt := f.MimeType
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	if i := strings.Index(mt, "/"); i >= 0 {
		return strings.TrimSpace(mt[i+1:])
	}
	return ""
}

func (f *TempFile) IsImage() bool {
	return strings.HasPrefix(f.MimeType, "image/")
}

// Files holds the staged file for each requested field. A field that was
// absent from the request maps to nil.
type Files map[string]*TempFile

// Get returns the staged file for field, or nil.
func (files Files) Get(field string) *TempFile {
	return files[field]
}

// Require returns the staged file for field or a FieldError wrapping ErrMissing.
func (files Files) Require(field string) (*TempFile, error) {
	if f := files[field]; f != nil {
		return f, nil
	}
	return nil, &FieldError{Field: field, Err: ErrMissing}
}

// All returns every staged file.
func (files Files) All() []*TempFile {
	out := make([]*TempFile, 0, len(files))
	for _, f := range files {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// Stager writes the first part of each named multipart field into Dir.
type Stager struct {
	Dir     string
	MaxSize int64
}

func NewStager(dir string, maxSize int64) *Stager {
	return &Stager{Dir: dir, MaxSize: maxSize}
}

// Stage parses r as a multipart form and stages the first file of every field
// in fields. Missing fields are left nil; it is up to the caller to require them.
// On error every file staged so far is removed.
func (s *Stager) Stage(r *http.Request, fields ...string) (Files, error) {
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(s.MaxSize); err != nil {
			if errors.Is(err, http.ErrNotMultipart) {
				return Files{}, nil
			}
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, ErrBodyTooLarge
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidForm, err)
		}
	}
	defer r.MultipartForm.RemoveAll()

	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	staged := Files{}
	for _, field := range fields {
		headers := r.MultipartForm.File[field]
		if len(headers) == 0 {
			continue
		}

		f, err := s.stageOne(field, headers[0])
		if err != nil {
			Release(staged.All()...)
			return nil, err
		}
		staged[field] = f
	}
	return staged, nil
}

func (s *Stager) stageOne(field string, header *multipart.FileHeader) (*TempFile, error) {
	if header.Size > s.MaxSize {
		return nil, &FieldError{Field: field, Err: ErrTooLarge}
	}

	src, err := header.Open()
	if err != nil {
		return nil, &FieldError{Field: field, Err: err}
	}
	defer src.Close()

	path := filepath.Join(s.Dir, uuid.NewString()+strings.ToLower(filepath.Ext(header.Filename)))
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, s.MaxSize+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.MaxSize {
		err = &FieldError{Field: field, Err: ErrTooLarge}
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("detect content type: %w", err)
	}

	return &TempFile{
		Field:     field,
		Path:      path,
		Filename:  filepath.Base(header.Filename),
		MimeType:  mt.String(),
		SizeBytes: n,
	}, nil
}

// Release removes the given temp files from disk. Files that are already gone
// are not an error. A failure is logged and returned but never aborts the
// removal of the remaining files.
func Release(files ...*TempFile) error {
	var errs []error
	for _, f := range files {
		if f == nil || f.Path == "" {
			continue
		}
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("cleanup warning path=%s error=%v", f.Path, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
