// internal/core/store/sqlstore.go
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/averko/feedmill/internal/core/db"
	"github.com/averko/feedmill/internal/engine"
	"github.com/averko/feedmill/internal/types"
)

/*
 * SQL-backed plan executor.
 *
 * Recency and popularity plans run as a single generated query (sqlgen.go).
 * Random plans cannot: their key is a seeded hash computed in Go, so the
 * executor scans the filtered candidate ids (bounded by RandomScanLimit),
 * ranks and bounds them in memory, then hydrates only the page's rows by id.
 * The candidate scan is deterministic (id-ordered), so a seeded session sees
 * a stable permutation as long as the candidate set fits the scan limit.
 */

// DefaultRandomScanLimit bounds the candidate id scan for random-order
// plans. Past this many matching posts a random feed silently samples the
// oldest ids rather than the full set; raise it via config if that matters.
const DefaultRandomScanLimit = 10000

// SQLStore executes compiled plans against the posts schema.
type SQLStore struct {
	db              *sqlx.DB
	randomScanLimit int
}

// NewSQLStore creates an executor over the shared query handle.
// randomScanLimit <= 0 selects the default.
func NewSQLStore(q *db.Queries, randomScanLimit int) *SQLStore {
	if randomScanLimit <= 0 {
		randomScanLimit = DefaultRandomScanLimit
	}
	return &SQLStore{db: q.DB(), randomScanLimit: randomScanLimit}
}

type keyedRow struct {
	types.Post
	OrderKey int64 `db:"order_key"`
}

// FindPage implements engine.Executor.
func (s *SQLStore) FindPage(ctx context.Context, plan *engine.QueryPlan, after *engine.KeyBound, limit int) ([]engine.Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	if plan.Order.Kind == engine.OrderRandom {
		return s.findRandomPage(ctx, plan, after, limit)
	}

	q, err := buildPageQuery(plan, after, limit)
	if err != nil {
		return nil, err
	}

	if q.Keyed {
		var rows []keyedRow
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q.SQL), q.Args...); err != nil {
			return nil, fmt.Errorf("fetching page: %w", err)
		}
		items := make([]engine.Item, len(rows))
		for i, r := range rows {
			items[i] = engine.Item{Post: r.Post, Key: r.OrderKey}
		}
		return items, nil
	}

	var posts []types.Post
	if err := s.db.SelectContext(ctx, &posts, s.db.Rebind(q.SQL), q.Args...); err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	items := make([]engine.Item, len(posts))
	for i, p := range posts {
		items[i] = engine.Item{Post: p, Key: p.CreatedAt.UnixMicro()}
	}
	return items, nil
}

// findRandomPage runs the scan-rank-hydrate path for seeded random plans.
func (s *SQLStore) findRandomPage(ctx context.Context, plan *engine.QueryPlan, after *engine.KeyBound, limit int) ([]engine.Item, error) {
	if plan.Order.Seed == nil {
		return nil, fmt.Errorf("random plan executed without a seed")
	}
	seed := *plan.Order.Seed

	cq := buildCandidateQuery(plan, s.randomScanLimit)
	var ids []types.PostID
	if err := s.db.SelectContext(ctx, &ids, s.db.Rebind(cq.SQL), cq.Args...); err != nil {
		return nil, fmt.Errorf("scanning candidates: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	ranked := make([]engine.KeyBound, len(ids))
	for i, id := range ids {
		ranked[i] = engine.KeyBound{Key: engine.RandomRank(seed, id), ID: id}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Key != ranked[j].Key {
			return ranked[i].Key < ranked[j].Key
		}
		return ranked[i].ID < ranked[j].ID
	})

	if after != nil {
		idx := sort.Search(len(ranked), func(i int) bool {
			if ranked[i].Key != after.Key {
				return ranked[i].Key > after.Key
			}
			return ranked[i].ID > after.ID
		})
		ranked = ranked[idx:]
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	pageIDs := make([]string, len(ranked))
	for i, r := range ranked {
		pageIDs[i] = string(r.ID)
	}
	query, args, err := sqlx.In(
		"SELECT "+postColumns+" "+postFrom+" WHERE p.post_id IN (?)", pageIDs)
	if err != nil {
		return nil, fmt.Errorf("building hydration query: %w", err)
	}
	var posts []types.Post
	if err := s.db.SelectContext(ctx, &posts, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("hydrating page: %w", err)
	}

	byID := make(map[types.PostID]types.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	items := make([]engine.Item, 0, len(ranked))
	for _, r := range ranked {
		p, ok := byID[r.ID]
		if !ok {
			// Candidate deleted between scan and hydration; skip it
			// rather than fail the page.
			continue
		}
		items = append(items, engine.Item{Post: p, Key: r.Key})
	}
	return items, nil
}
