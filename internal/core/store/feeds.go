// internal/core/store/feeds.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/averko/feedmill/internal/core/db"
	"github.com/averko/feedmill/internal/engine"
	"github.com/averko/feedmill/internal/types"
)

/*
 * Feed definition repository.
 *
 * Persists named block pipelines as the tagged-union JSON array. Every
 * write re-validates the blocks with the same rules the preview path uses,
 * so a definition that reaches the table always compiles. Reads and writes
 * are owner-scoped: fetching by id is open to the owner only, and updates
 * or deletes by a non-owner fail with ErrNotOwner rather than leaking
 * whether the feed exists to its owner.
 */

// FeedRepo stores and retrieves feed definitions.
type FeedRepo struct {
	q *db.Queries
}

// NewFeedRepo creates a repository over the shared query handle.
func NewFeedRepo(q *db.Queries) *FeedRepo {
	return &FeedRepo{q: q}
}

// feedRow is the storage shape; blocks stay serialized until decode.
type feedRow struct {
	ID        types.FeedID `db:"feed_id"`
	OwnerID   types.UserID `db:"owner_id"`
	Name      string       `db:"name"`
	Blocks    []byte       `db:"blocks"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
}

func (r feedRow) toDefinition() (*types.FeedDefinition, error) {
	blocks, err := types.DecodeBlocks(r.Blocks)
	if err != nil {
		return nil, fmt.Errorf("decoding stored blocks for feed %s: %w", r.ID, err)
	}
	return &types.FeedDefinition{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Blocks:    blocks,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

// Create validates and persists a new feed definition for owner.
func (r *FeedRepo) Create(ctx context.Context, owner types.UserID, name string, blocks []types.Block) (*types.FeedDefinition, error) {
	if _, err := engine.Validate(blocks); err != nil {
		return nil, err
	}
	encoded, err := types.EncodeBlocks(blocks)
	if err != nil {
		return nil, fmt.Errorf("encoding blocks: %w", err)
	}

	now := time.Now().UTC()
	def := &types.FeedDefinition{
		ID:        types.NewFeedID(),
		OwnerID:   owner,
		Name:      name,
		Blocks:    blocks,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = r.q.Exec(ctx, "insert-feed-definition",
		string(def.ID), string(def.OwnerID), def.Name, encoded, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting feed definition: %w", err)
	}
	return def, nil
}

// Get fetches one feed definition. Requesters other than the owner get
// ErrNotFound, indistinguishable from a missing feed.
func (r *FeedRepo) Get(ctx context.Context, requester types.UserID, id types.FeedID) (*types.FeedDefinition, error) {
	var row feedRow
	err := r.q.Get(ctx, "get-feed-definition", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: feed %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching feed definition: %w", err)
	}
	if row.OwnerID != requester {
		return nil, fmt.Errorf("%w: feed %s", types.ErrNotFound, id)
	}
	return row.toDefinition()
}

// ListByOwner returns all of owner's feed definitions, newest first.
func (r *FeedRepo) ListByOwner(ctx context.Context, owner types.UserID) ([]*types.FeedDefinition, error) {
	var rows []feedRow
	if err := r.q.Select(ctx, "list-feed-definitions-by-owner", &rows, string(owner)); err != nil {
		return nil, fmt.Errorf("listing feed definitions: %w", err)
	}
	defs := make([]*types.FeedDefinition, 0, len(rows))
	for _, row := range rows {
		def, err := row.toDefinition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Update re-validates and replaces a feed's name and blocks. Only the
// owner may update; anyone else gets ErrNotOwner.
func (r *FeedRepo) Update(ctx context.Context, requester types.UserID, id types.FeedID, name string, blocks []types.Block) (*types.FeedDefinition, error) {
	existing, err := r.ownedRow(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	if _, err := engine.Validate(blocks); err != nil {
		return nil, err
	}
	encoded, err := types.EncodeBlocks(blocks)
	if err != nil {
		return nil, fmt.Errorf("encoding blocks: %w", err)
	}

	now := time.Now().UTC()
	if _, err := r.q.Exec(ctx, "update-feed-definition", name, encoded, now, string(id)); err != nil {
		return nil, fmt.Errorf("updating feed definition: %w", err)
	}
	return &types.FeedDefinition{
		ID:        id,
		OwnerID:   existing.OwnerID,
		Name:      name,
		Blocks:    blocks,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: now,
	}, nil
}

// Delete removes a feed definition. Only the owner may delete.
func (r *FeedRepo) Delete(ctx context.Context, requester types.UserID, id types.FeedID) error {
	if _, err := r.ownedRow(ctx, requester, id); err != nil {
		return err
	}
	if _, err := r.q.Exec(ctx, "delete-feed-definition", string(id)); err != nil {
		return fmt.Errorf("deleting feed definition: %w", err)
	}
	return nil
}

// ownedRow fetches a row and enforces ownership for mutating operations.
// Unlike Get, a non-owner here gets ErrNotOwner: the caller proved the feed
// exists by addressing it, and the distinct error maps to 403 rather
// than 404.
func (r *FeedRepo) ownedRow(ctx context.Context, requester types.UserID, id types.FeedID) (*feedRow, error) {
	var row feedRow
	err := r.q.Get(ctx, "get-feed-definition", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: feed %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching feed definition: %w", err)
	}
	if row.OwnerID != requester {
		return nil, fmt.Errorf("%w: feed %s", types.ErrNotOwner, id)
	}
	return &row, nil
}
