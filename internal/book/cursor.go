package book

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// CursorData marks the last book of a page in (created_at, id) order.
type CursorData struct {
	AfterID   string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"ts"`
}

func (c CursorData) IsZero() bool {
	return c.AfterID == ""
}

// CursorAfter returns the cursor continuing after b.
func CursorAfter(b Book) CursorData {
	return CursorData{AfterID: b.ID, CreatedAt: b.CreatedAt}
}

// EncodeCursor encodes cursor data as an opaque URL-safe string.
func EncodeCursor(data CursorData) string {
	if data.IsZero() {
		return ""
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a string produced by EncodeCursor. An empty string is
// the zero cursor.
func DecodeCursor(cursor string) (CursorData, error) {
	if cursor == "" {
		return CursorData{}, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return CursorData{}, newValidationError("cursor", "cursor is invalid")
	}

	var data CursorData
	if err := json.Unmarshal(raw, &data); err != nil || data.IsZero() {
		return CursorData{}, newValidationError("cursor", "cursor is invalid")
	}
	return data, nil
}
