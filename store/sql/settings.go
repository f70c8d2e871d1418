package sql

import (
	"context"

	"github.com/pablopunk/doceq/store"
)

// GetSettings returns the singleton queue_settings row. InitDB seeds
// it, so under normal operation it always exists.
func (a *Admin) GetSettings(ctx context.Context) (*store.Settings, error) {
	var model settingsModel
	if err := a.db.NewSelect().Model(&model).Where("id = 1").Scan(ctx); err != nil {
		return nil, err
	}
	return &store.Settings{Paused: model.Paused, Concurrency: model.Concurrency}, nil
}

// SetPaused updates the paused flag on the singleton settings row.
func (a *Admin) SetPaused(ctx context.Context, paused bool) error {
	_, err := a.db.NewUpdate().
		Model((*settingsModel)(nil)).
		Set("paused = ?", paused).
		Where("id = 1").
		Exec(ctx)
	return err
}

// SetConcurrency updates the configured concurrency on the singleton
// settings row.
func (a *Admin) SetConcurrency(ctx context.Context, concurrency int) error {
	_, err := a.db.NewUpdate().
		Model((*settingsModel)(nil)).
		Set("concurrency = ?", concurrency).
		Where("id = 1").
		Exec(ctx)
	return err
}
