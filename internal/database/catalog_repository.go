package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mmiprep/assessment-worker/internal/domain"
)

// ErrStationNotFound is returned when no station exists for the requested id.
var ErrStationNotFound = errors.New("station not found")

// CatalogRepository provides read-only access to stations and study articles.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetStation loads a station by id.
func (r *CatalogRepository) GetStation(ctx context.Context, id string) (*domain.Station, error) {
	var station domain.Station
	var themes pq.StringArray
	err := r.db.QueryRowxContext(ctx, `
		SELECT id, title, COALESCE(prompt, ''), themes, role_play, graph_data,
		       COALESCE(difficulty, '')
		FROM stations
		WHERE id = $1`, id).
		Scan(&station.ID, &station.Title, &station.Prompt, &themes,
			&station.RolePlay, &station.GraphData, &station.Difficulty)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get station %s: %w", id, err)
	}
	station.Themes = themes
	return &station, nil
}

// ListArticles returns the full article catalog in stable id order.
func (r *CatalogRepository) ListArticles(ctx context.Context) ([]domain.Article, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, title, COALESCE(category, ''), tags, COALESCE(difficulty, '')
		FROM articles
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var a domain.Article
		var tags pq.StringArray
		if scanErr := rows.Scan(&a.ID, &a.Title, &a.Category, &tags, &a.Difficulty); scanErr != nil {
			return nil, fmt.Errorf("scan article: %w", scanErr)
		}
		a.Tags = tags
		articles = append(articles, a)
	}
	return articles, rows.Err()
}
