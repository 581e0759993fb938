package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sellinios/aethra/internal/domain"
)

// Places reads the registered place set.
type Places struct {
	db *DB
}

func NewPlaces(db *DB) *Places {
	return &Places{db: db}
}

// All returns every place ordered by id.
func (p *Places) All(ctx context.Context) ([]domain.Place, error) {
	var rows []placeRow
	if err := p.db.gorm.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, persistErr("list places", err)
	}
	out := make([]domain.Place, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// BySlug returns domain.ErrPlaceNotFound for an unknown slug.
func (p *Places) BySlug(ctx context.Context, slug string) (domain.Place, error) {
	var row placeRow
	err := p.db.gorm.WithContext(ctx).Where("slug = ?", slug).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Place{}, fmt.Errorf("%q: %w", slug, domain.ErrPlaceNotFound)
	}
	if err != nil {
		return domain.Place{}, persistErr("get place", err)
	}
	return row.toDomain(), nil
}

// Upsert inserts places or updates them by slug, and fills in their ids.
func (p *Places) Upsert(ctx context.Context, places []domain.Place) error {
	if len(places) == 0 {
		return nil
	}
	index := make(map[string]int, len(places))
	rows := make([]placeRow, 0, len(places))
	for _, pl := range places {
		row := placeRow{
			Slug:      pl.Slug,
			Name:      pl.Name,
			Latitude:  pl.Latitude,
			Longitude: pl.Longitude,
			Elevation: pl.Elevation,
		}
		if i, ok := index[pl.Slug]; ok {
			rows[i] = row
			continue
		}
		index[pl.Slug] = len(rows)
		rows = append(rows, row)
	}
	err := p.db.gorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "latitude", "longitude", "elevation"}),
	}).Create(&rows).Error
	if err != nil {
		return persistErr("upsert places", err)
	}

	// Conflicting rows may not report their id, so read them back.
	slugs := make([]string, len(rows))
	for i, r := range rows {
		slugs[i] = r.Slug
	}
	var stored []placeRow
	if err := p.db.gorm.WithContext(ctx).Where("slug IN ?", slugs).Find(&stored).Error; err != nil {
		return persistErr("reload places", err)
	}
	ids := make(map[string]int64, len(stored))
	for _, r := range stored {
		ids[r.Slug] = r.ID
	}
	for i := range places {
		places[i].ID = ids[places[i].Slug]
	}
	return nil
}
