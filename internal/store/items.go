package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gunjansamrit/GuardianVault01/internal/consent"
)

// ErrItemNotFound is returned when no registry row exists for the item.
// It aliases the engine's sentinel so lookups classify uniformly.
var ErrItemNotFound = consent.ErrItemNotFound

const itemColumns = "id, owner_id, name, kind, created_at"

func scanItem(row pgx.Row) (*consent.DataItem, error) {
	var i consent.DataItem
	err := row.Scan(&i.ID, &i.OwnerID, &i.Name, &i.Kind, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// CreateItem inserts a registry row and returns it with its generated id.
func (s *Store) CreateItem(ctx context.Context, item *consent.DataItem) (*consent.DataItem, error) {
	created := *item
	row := s.pool.QueryRow(ctx,
		`INSERT INTO data_items (owner_id, name, kind)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		item.OwnerID, item.Name, item.Kind,
	)
	if err := row.Scan(&created.ID, &created.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return &created, nil
}

// GetItem returns a registry row by id, or ErrItemNotFound.
func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*consent.DataItem, error) {
	item, err := scanItem(s.pool.QueryRow(ctx,
		"SELECT "+itemColumns+" FROM data_items WHERE id = $1", id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetItemForOwner returns a registry row only when it belongs to the owner.
func (s *Store) GetItemForOwner(ctx context.Context, id, ownerID uuid.UUID) (*consent.DataItem, error) {
	item, err := scanItem(s.pool.QueryRow(ctx,
		"SELECT "+itemColumns+" FROM data_items WHERE id = $1 AND owner_id = $2", id, ownerID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item for owner: %w", err)
	}
	return item, nil
}

// ListItemsByOwner returns the owner's registry rows, oldest first.
func (s *Store) ListItemsByOwner(ctx context.Context, ownerID uuid.UUID) ([]consent.DataItem, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+itemColumns+" FROM data_items WHERE owner_id = $1 ORDER BY created_at ASC",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []consent.DataItem
	for rows.Next() {
		var i consent.DataItem
		if err := rows.Scan(&i.ID, &i.OwnerID, &i.Name, &i.Kind, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// UpdateItemName renames a registry row owned by the given owner.
func (s *Store) UpdateItemName(ctx context.Context, id, ownerID uuid.UUID, name string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE data_items SET name = $1 WHERE id = $2 AND owner_id = $3",
		name, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// DeleteItem removes a registry row owned by the given owner.
func (s *Store) DeleteItem(ctx context.Context, id, ownerID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM data_items WHERE id = $1 AND owner_id = $2",
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}
