package book

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookvault/internal/asset"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookColumns = `id, title, genre, description, cover_image_url, file_url, owner_id, created_at, updated_at`

// PostgresRepo stores book metadata. Writes are whole-row: the last
// UpdateByID for an id wins.
type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]Book, error) {
	clauses := []string{"1=1"}
	args := []any{}
	argn := 1

	if q.Genre != "" {
		clauses = append(clauses, fmt.Sprintf("genre = $%d", argn))
		args = append(args, q.Genre)
		argn++
	}

	if q.OwnerID != "" {
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", argn))
		args = append(args, q.OwnerID)
		argn++
	}

	if !q.After.IsZero() {
		clauses = append(clauses, fmt.Sprintf("(created_at, id) > ($%d, $%d)", argn, argn+1))
		args = append(args, q.After.CreatedAt, q.After.AfterID)
		argn += 2
	}

	sql := fmt.Sprintf(`
		SELECT %s
		FROM books
		WHERE %s
		ORDER BY created_at, id
		LIMIT $%d`,
		bookColumns, strings.Join(clauses, " AND "), argn)
	args = append(args, q.Limit)

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	b, err := scanBook(r.db.QueryRow(timeoutCtx, query, id))
	if err != nil {
		return Book{}, mapError(err)
	}
	return b, nil
}

func (r *PostgresRepo) Create(ctx context.Context, b Book) (Book, error) {
	query := `
		INSERT INTO books (title, genre, description, cover_image_url, file_url, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + bookColumns

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	created, err := scanBook(r.db.QueryRow(timeoutCtx, query,
		b.Title, b.Genre, b.Description, b.CoverImage.URL, b.Document.URL, b.OwnerID,
	))
	if err != nil {
		return Book{}, err
	}
	return created, nil
}

// UpdateByID overwrites every mutable column. owner_id and created_at are
// never written.
func (r *PostgresRepo) UpdateByID(ctx context.Context, id string, b Book) (Book, error) {
	query := `
		UPDATE books SET
			title = $2,
			genre = $3,
			description = $4,
			cover_image_url = $5,
			file_url = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + bookColumns

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	updated, err := scanBook(r.db.QueryRow(timeoutCtx, query,
		id, b.Title, b.Genre, b.Description, b.CoverImage.URL, b.Document.URL,
	))
	if err != nil {
		return Book{}, mapError(err)
	}
	return updated, nil
}

func (r *PostgresRepo) DeleteByID(ctx context.Context, id string) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBook(row pgx.Row) (Book, error) {
	var b Book
	err := row.Scan(
		&b.ID, &b.Title, &b.Genre, &b.Description, &b.CoverImage.URL, &b.Document.URL,
		&b.OwnerID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return Book{}, err
	}
	b.CoverImage.Kind = asset.KindImage
	b.Document.Kind = asset.KindDocument
	return b, nil
}

// mapError turns a missing row, or an id that is not a valid uuid, into ErrNotFound.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return ErrNotFound
	}
	return err
}
