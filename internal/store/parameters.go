package store

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/sellinios/aethra/internal/domain"
)

// Parameters is the parameter catalog repository.
type Parameters struct {
	db *DB
}

func NewParameters(db *DB) *Parameters {
	return &Parameters{db: db}
}

// List returns the whole catalog ordered by category, number and level.
func (p *Parameters) List(ctx context.Context) ([]domain.EnabledParameter, error) {
	var rows []parameterRow
	err := p.db.gorm.WithContext(ctx).
		Order("parameter_category, number, level_layer, id").
		Find(&rows).Error
	if err != nil {
		return nil, persistErr("list parameters", err)
	}
	out := make([]domain.EnabledParameter, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// EnabledKeys returns the filter allow-list.
func (p *Parameters) EnabledKeys(ctx context.Context) (domain.ParameterSet, error) {
	var rows []parameterRow
	if err := p.db.gorm.WithContext(ctx).Where("enabled = ?", true).Find(&rows).Error; err != nil {
		return nil, persistErr("load enabled parameters", err)
	}
	keys := make([]domain.ParameterKey, len(rows))
	for i, r := range rows {
		keys[i] = r.toDomain().Key()
	}
	return domain.NewParameterSet(keys...), nil
}

// Upsert writes catalog rows keyed on (number, level, parameter). With
// setEnabled false, the enabled flag of existing rows is left alone and new
// rows take the flag from params.
func (p *Parameters) Upsert(ctx context.Context, params []domain.EnabledParameter, setEnabled bool) (int, error) {
	if len(params) == 0 {
		return 0, nil
	}
	now := domain.Now()
	type catalogKey struct {
		number, level int
		parameter     string
	}
	index := make(map[catalogKey]int, len(params))
	rows := make([]parameterRow, 0, len(params))
	for _, prm := range params {
		row := parameterRow{
			Number:            prm.Number,
			ParameterCategory: prm.Category,
			LevelLayer:        prm.Level,
			ShortName:         prm.ShortName,
			Parameter:         prm.Parameter,
			TypeOfLevel:       prm.TypeOfLevel,
			Description:       prm.Description,
			Enabled:           prm.Enabled,
			LastUpdated:       now,
		}
		// One statement cannot upsert the same key twice; the last row wins.
		k := catalogKey{prm.Number, prm.Level, prm.Parameter}
		if i, ok := index[k]; ok {
			rows[i] = row
			continue
		}
		index[k] = len(rows)
		rows = append(rows, row)
	}

	update := []string{"parameter_category", "short_name", "type_of_level", "description", "last_updated"}
	if setEnabled {
		update = append(update, "enabled")
	}
	res := p.db.gorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "number"}, {Name: "level_layer"}, {Name: "parameter"}},
		DoUpdates: clause.AssignmentColumns(update),
	}).Create(&rows)
	if res.Error != nil {
		return 0, persistErr("upsert parameters", res.Error)
	}
	return len(rows), nil
}
