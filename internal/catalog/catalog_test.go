package catalog_test

import (
	"context"
	"testing"

	"maitred/internal/catalog"
	"maitred/internal/database"
	"maitred/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeSnapshot(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.SeedDemo(db))
	store := database.NewStore(db)

	snap, err := catalog.Take(context.Background(), store, database.DemoTenantID, []string{"et-doner", "ayran", "ghost"})
	require.NoError(t, err)

	_, ok := snap.Item("ghost")
	assert.False(t, ok)
	item, ok := snap.Item("et-doner")
	require.True(t, ok)
	assert.Equal(t, "Et Döner", item.Name)

	missing := snap.MissingRequired("et-doner", nil)
	require.Len(t, missing, 1)
	assert.Equal(t, "et-doner-portion", missing[0].ID)
	assert.Empty(t, snap.MissingRequired("et-doner", []string{"tam"}))

	assert.True(t, snap.UnitPrice("et-doner", []string{"tam"}).Equal(decimal.NewFromInt(80)))
	assert.True(t, snap.UnitPrice("ayran", []string{"tam"}).Equal(decimal.NewFromInt(5)))

	_, _, ok = snap.FindOption("ayran", "tam")
	assert.False(t, ok)
}

// sliceOnlyCatalog serves snapshots from one call and fails every other read
type sliceOnlyCatalog struct {
	calls  int
	items  []models.MenuItem
	groups []models.OptionGroup
}

func (c *sliceOnlyCatalog) MenuVersion(ctx context.Context, tenantID string) (int, error) {
	panic("unexpected MenuVersion")
}

func (c *sliceOnlyCatalog) GetActiveMenuItems(ctx context.Context, tenantID string) ([]models.MenuItem, error) {
	panic("unexpected GetActiveMenuItems")
}

func (c *sliceOnlyCatalog) GetSynonyms(ctx context.Context, tenantID string) ([]models.MenuSynonym, error) {
	panic("unexpected GetSynonyms")
}

func (c *sliceOnlyCatalog) GetMenuSlice(ctx context.Context, tenantID string, itemIDs []string) ([]models.MenuItem, []models.OptionGroup, error) {
	c.calls++
	return c.items, c.groups, nil
}

func TestTakeReadsMenuOnce(t *testing.T) {
	cat := &sliceOnlyCatalog{
		items: []models.MenuItem{{ID: "et-doner", Name: "Et Döner", Price: decimal.NewFromInt(60), Active: true}},
		groups: []models.OptionGroup{
			{ID: "portion", MenuItemID: "et-doner", Required: true, MaxSelect: 1,
				Options: []models.MenuOption{{ID: "tam", PriceDelta: decimal.NewFromInt(20), Active: true}}},
			{ID: "stale", MenuItemID: "kola", Required: true},
		},
	}

	snap, err := catalog.Take(context.Background(), cat, "demo", []string{"et-doner", "kola"})
	require.NoError(t, err)
	assert.Equal(t, 1, cat.calls)

	_, ok := snap.Item("kola")
	assert.False(t, ok)
	assert.Empty(t, snap.Groups("kola"))
	assert.Len(t, snap.Groups("et-doner"), 1)
	assert.True(t, snap.UnitPrice("et-doner", []string{"tam"}).Equal(decimal.NewFromInt(80)))

	empty, err := catalog.Take(context.Background(), cat, "demo", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.calls)
	_, ok = empty.Item("et-doner")
	assert.False(t, ok)
}
