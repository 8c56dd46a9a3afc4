package store

import (
	"context"
	"fmt"
)

// Mirror writes to a primary and a secondary store and reads from the primary.
// A secondary write failure fails the save so the two never silently diverge.
type Mirror struct {
	Primary   Store
	Secondary Store
}

// NewMirror returns primary alone when secondary is nil.
func NewMirror(primary, secondary Store) Store {
	if secondary == nil {
		return primary
	}
	return &Mirror{Primary: primary, Secondary: secondary}
}

func (m *Mirror) Save(ctx context.Context, stage string, page int, record any) error {
	if err := m.Primary.Save(ctx, stage, page, record); err != nil {
		return err
	}
	if err := m.Secondary.Save(ctx, stage, page, record); err != nil {
		return fmt.Errorf("mirror save failed: %w", err)
	}
	return nil
}

func (m *Mirror) Load(ctx context.Context, stage string, page int, into any) error {
	return m.Primary.Load(ctx, stage, page, into)
}

func (m *Mirror) Exists(ctx context.Context, stage string, page int) (bool, error) {
	return m.Primary.Exists(ctx, stage, page)
}

func (m *Mirror) Pages(ctx context.Context, stage string) ([]int, error) {
	return m.Primary.Pages(ctx, stage)
}

func (m *Mirror) SaveSummary(ctx context.Context, stage string, summary any) error {
	if err := m.Primary.SaveSummary(ctx, stage, summary); err != nil {
		return err
	}
	if err := m.Secondary.SaveSummary(ctx, stage, summary); err != nil {
		return fmt.Errorf("mirror save failed: %w", err)
	}
	return nil
}

func (m *Mirror) LoadSummary(ctx context.Context, stage string, into any) error {
	return m.Primary.LoadSummary(ctx, stage, into)
}
