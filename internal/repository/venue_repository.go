package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cems-project/cems-api/internal/models"
)

// VenueRepository reads venue rows. Venues are reference data from the
// workflow's point of view.
type VenueRepository struct {
	db *sqlx.DB
}

// NewVenueRepository constructs the repository.
func NewVenueRepository(db *sqlx.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

// GetByID fetches a venue.
func (r *VenueRepository) GetByID(ctx context.Context, id int64) (*models.Venue, error) {
	const query = `SELECT id, name, capacity, department_id, created_at FROM venues WHERE id = $1`
	var venue models.Venue
	if err := r.db.GetContext(ctx, &venue, query, id); err != nil {
		return nil, err
	}
	return &venue, nil
}

// List returns every venue ordered by name.
func (r *VenueRepository) List(ctx context.Context) ([]models.Venue, error) {
	const query = `SELECT id, name, capacity, department_id, created_at FROM venues ORDER BY name ASC`
	var venues []models.Venue
	if err := r.db.SelectContext(ctx, &venues, query); err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	return venues, nil
}
