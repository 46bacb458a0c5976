package asset

import "fmt"

// Kind identifies how an asset was uploaded to the object store.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

const (
	CoverFolder    = "book-covers"
	DocumentFolder = "book-pdfs"

	// DocumentFormat is the stored format of every document asset.
	DocumentFormat = "pdf"
)

// Folder returns the logical store folder for the kind.
func (k Kind) Folder() string {
	if k == KindDocument {
		return DocumentFolder
	}
	return CoverFolder
}

func (k Kind) Valid() bool {
	return k == KindImage || k == KindDocument
}

func (k Kind) String() string {
	return string(k)
}

// Reference points at a live blob in the object store.
type Reference struct {
	URL  string `json:"url"`
	Kind Kind   `json:"kind"`
}

// PublicID derives the store identifier of the referenced blob.
func (r Reference) PublicID() (string, error) {
	if !r.Kind.Valid() {
		return "", fmt.Errorf("%w: unknown asset kind %q", ErrMalformedURL, r.Kind)
	}
	return PublicID(r.URL, r.Kind)
}
