package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/timecapsule/timecapsule/internal/model"
)

// ErrCapsuleNotFound is returned when a capsule does not exist or is not owned by the caller.
var ErrCapsuleNotFound = errors.New("capsule not found")

const capsuleColumns = `id, owner_id, title, content, open_date, category, image, audio, created_at, updated_at`

// CreateCapsule inserts a new capsule into the database.
func (r *Repository) CreateCapsule(ctx context.Context, c *model.Capsule) error {
	query := `
		INSERT INTO capsules (id, owner_id, title, content, open_date, category, image, audio, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.OwnerID,
		c.Title,
		c.Content,
		c.OpenDate.UTC(),
		string(c.Category),
		c.Image,
		c.Audio,
		c.CreatedAt,
		c.UpdatedAt,
	)

	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create capsule: %w", err)
	}

	return nil
}

// ListCapsulesByOwner returns every capsule of the owner, latest open date first.
func (r *Repository) ListCapsulesByOwner(ctx context.Context, ownerID string) ([]*model.Capsule, error) {
	query := `
		SELECT ` + capsuleColumns + `
		FROM capsules
		WHERE owner_id = $1
		ORDER BY open_date DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list capsules: %w", err)
	}

	return collectCapsules(rows)
}

// GetCapsuleForOwner retrieves a capsule by ID scoped to its owner.
// A capsule owned by someone else is reported as ErrCapsuleNotFound.
func (r *Repository) GetCapsuleForOwner(ctx context.Context, ownerID, id string) (*model.Capsule, error) {
	query := `
		SELECT ` + capsuleColumns + `
		FROM capsules
		WHERE id = $1 AND owner_id = $2
	`

	c, err := scanCapsule(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCapsuleNotFound
		}
		return nil, fmt.Errorf("failed to get capsule: %w", err)
	}

	return c, nil
}

// GetCapsuleByMedia finds the owner's capsule referencing the given media object.
func (r *Repository) GetCapsuleByMedia(ctx context.Context, ownerID, ref string) (*model.Capsule, error) {
	query := `
		SELECT ` + capsuleColumns + `
		FROM capsules
		WHERE owner_id = $1 AND (image = $2 OR audio = $2)
		LIMIT 1
	`

	c, err := scanCapsule(r.pool.QueryRow(ctx, query, ownerID, ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCapsuleNotFound
		}
		return nil, fmt.Errorf("failed to get capsule by media: %w", err)
	}

	return c, nil
}

// UpdateCapsule writes the mutable fields of a capsule.
// The open date is not part of the statement and can never change.
func (r *Repository) UpdateCapsule(ctx context.Context, c *model.Capsule) error {
	query := `
		UPDATE capsules
		SET title = $3, content = $4, category = $5, image = $6, audio = $7
		WHERE id = $1 AND owner_id = $2
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		c.ID,
		c.OwnerID,
		c.Title,
		c.Content,
		string(c.Category),
		c.Image,
		c.Audio,
	).Scan(&c.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCapsuleNotFound
		}
		return fmt.Errorf("failed to update capsule: %w", err)
	}

	return nil
}

// DeleteCapsuleForOwner removes a capsule and returns the deleted row,
// so the caller can clean up its media.
func (r *Repository) DeleteCapsuleForOwner(ctx context.Context, ownerID, id string) (*model.Capsule, error) {
	query := `
		DELETE FROM capsules
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + capsuleColumns

	c, err := scanCapsule(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCapsuleNotFound
		}
		return nil, fmt.Errorf("failed to delete capsule: %w", err)
	}

	return c, nil
}

// ListCapsulesOpenedBetween returns capsules whose open date lies in (from, to],
// across all owners, oldest first.
func (r *Repository) ListCapsulesOpenedBetween(ctx context.Context, from, to time.Time) ([]*model.Capsule, error) {
	query := `
		SELECT ` + capsuleColumns + `
		FROM capsules
		WHERE open_date > $1 AND open_date <= $2
		ORDER BY open_date ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list opened capsules: %w", err)
	}

	return collectCapsules(rows)
}

func collectCapsules(rows pgx.Rows) ([]*model.Capsule, error) {
	defer rows.Close()

	capsules := make([]*model.Capsule, 0)
	for rows.Next() {
		c, err := scanCapsule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capsule: %w", err)
		}
		capsules = append(capsules, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating capsules: %w", err)
	}

	return capsules, nil
}

// scanCapsule scans a single row into a Capsule model.
// pgx.Rows satisfies pgx.Row, so it serves both QueryRow and Query.
func scanCapsule(row pgx.Row) (*model.Capsule, error) {
	var (
		c        model.Capsule
		category string
	)
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Title,
		&c.Content,
		&c.OpenDate,
		&category,
		&c.Image,
		&c.Audio,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Category = model.Category(category)
	c.OpenDate = c.OpenDate.UTC()
	return &c, nil
}
