package asset

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMalformedURL is returned when no store identifier can be derived from a URL.
var ErrMalformedURL = errors.New("malformed asset url")

// PublicID derives the identifier the object store needs to destroy a blob
// from the URL returned when it was uploaded.
//
// Images were uploaded format-tagged, so their identifier drops the extension:
//
//	https://cdn.example.com/book-covers/abc123.png -> book-covers/abc123
//
// Documents were uploaded raw and keep it:
//
//	https://cdn.example.com/book-pdfs/doc987.pdf -> book-pdfs/doc987.pdf
func PublicID(rawURL string, kind Kind) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}

	segments := strings.Split(u.Path, "/")
	if len(segments) < 2 {
		return "", fmt.Errorf("%w: %q has fewer than two path segments", ErrMalformedURL, rawURL)
	}

	folder := segments[len(segments)-2]
	base := segments[len(segments)-1]
	if folder == "" {
		return "", fmt.Errorf("%w: %q has fewer than two path segments", ErrMalformedURL, rawURL)
	}

	if kind == KindImage {
		if i := strings.LastIndex(base, "."); i >= 0 {
			base = base[:i]
		}
	}
	if base == "" {
		return "", fmt.Errorf("%w: %q has no basename", ErrMalformedURL, rawURL)
	}

	return folder + "/" + base, nil
}
