// Package storage is the relational fallback tier: the merged catalog is
// mirrored into Postgres after each successful publish so single-item
// lookups keep working when the snapshot blob is cold.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gametrack/pkg/catalog"
)

// Repository handles database operations for the catalog mirror.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertItems batch upserts catalog items keyed by their external id.
// Returns the number of rows written.
func (r *Repository) UpsertItems(ctx context.Context, items []catalog.Item) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			INSERT INTO games (
				id, name, summary, cover_url, first_release_date,
				aggregated_rating, rating_count, genres, platforms,
				themes, publishers, popularity, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				summary = EXCLUDED.summary,
				cover_url = EXCLUDED.cover_url,
				first_release_date = EXCLUDED.first_release_date,
				aggregated_rating = EXCLUDED.aggregated_rating,
				rating_count = EXCLUDED.rating_count,
				genres = EXCLUDED.genres,
				platforms = EXCLUDED.platforms,
				themes = EXCLUDED.themes,
				publishers = EXCLUDED.publishers,
				popularity = EXCLUDED.popularity,
				updated_at = now()
		`,
			item.ID,
			item.Name,
			item.Summary,
			item.CoverURL,
			item.FirstReleaseDate,
			item.AggregatedRating,
			item.RatingCount,
			item.Genres,
			item.Platforms,
			item.Themes,
			item.Publishers,
			item.Popularity,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var written int64
	for range items {
		tag, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("upsert games batch: %w", err)
		}
		written += tag.RowsAffected()
	}
	return written, nil
}

// GetItem returns one catalog item by id, or nil if unknown.
func (r *Repository) GetItem(ctx context.Context, id int64) (*catalog.Item, error) {
	var item catalog.Item
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, summary, cover_url, first_release_date,
		       aggregated_rating, rating_count, genres, platforms,
		       themes, publishers, popularity
		FROM games
		WHERE id = $1
	`, id).Scan(
		&item.ID,
		&item.Name,
		&item.Summary,
		&item.CoverURL,
		&item.FirstReleaseDate,
		&item.AggregatedRating,
		&item.RatingCount,
		&item.Genres,
		&item.Platforms,
		&item.Themes,
		&item.Publishers,
		&item.Popularity,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query game %d: %w", id, err)
	}
	return &item, nil
}

// CountItems returns the number of mirrored catalog rows.
func (r *Repository) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM games`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return count, nil
}
