package book

// authorizeOwner allows mutation only by the identity that created the book.
func authorizeOwner(b Book, requesterID string) error {
	if requesterID == "" || b.OwnerID != requesterID {
		return ErrForbidden
	}
	return nil
}
