package datasync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/openvote/voteapi/internal/datastore"
)

func setupTestDB(t *testing.T) *datastore.DataStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&datastore.ItemGroup{},
		&datastore.Item{},
		&datastore.Category{},
		&datastore.CategoryItem{},
	))

	return &datastore.DataStore{DB: db}
}

// writeDataDir lays out a data directory with the given definition files.
func writeDataDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

const weaponsGroup = `
name: weapons
description: All weapons
items:
  - name: ak47
    image_url: /img/ak47.png
    metadata:
      display_name: AK-47
      class: rifle
  - name: awp
    metadata:
      class: sniper
  - name: glock
    metadata:
      class: pistol
`

func TestSyncCreatesGroupsItemsAndCategories(t *testing.T) {
	ds := setupTestDB(t)
	dir := writeDataDir(t, map[string]string{
		"item_groups/weapons.yaml": weaponsGroup,
		"categories/best.yaml": `
name: best-weapon
description: Vote for the best weapon
comparison_mode: single_choice
item_group: weapons
`,
	})

	summary, err := New(ds, dir).SyncAll()
	require.NoError(t, err)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 1, summary.ItemGroupsCreated)
	assert.Equal(t, 3, summary.ItemsCreated)
	assert.Equal(t, 1, summary.CategoriesCreated)

	category, err := ds.GetCategoryByName("best-weapon")
	require.NoError(t, err)
	assert.Equal(t, datastore.SingleChoice, category.ComparisonMode)
	assert.True(t, category.IsActive)

	items, err := ds.GetCategoryItems(category.ID)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	item, err := ds.GetItemByName("ak47")
	require.NoError(t, err)
	assert.Equal(t, "AK-47", item.DisplayName())
	assert.Equal(t, "/img/ak47.png", item.ImageURL)
}

func TestSyncIsIdempotent(t *testing.T) {
	ds := setupTestDB(t)
	dir := writeDataDir(t, map[string]string{
		"item_groups/weapons.yaml": weaponsGroup,
		"categories/best.yaml": `
name: best-weapon
comparison_mode: elo_tournament
item_group: weapons
`,
	})
	svc := New(ds, dir)

	_, err := svc.SyncAll()
	require.NoError(t, err)

	summary, err := svc.SyncAll()
	require.NoError(t, err)
	assert.Zero(t, summary.ItemGroupsCreated)
	assert.Zero(t, summary.ItemsCreated)
	assert.Zero(t, summary.CategoriesCreated)
	assert.Equal(t, 1, summary.ItemGroupsUpdated)
	assert.Equal(t, 3, summary.ItemsUpdated)
	assert.Equal(t, 1, summary.CategoriesUpdated)

	category, err := ds.GetCategoryByName("best-weapon")
	require.NoError(t, err)
	items, err := ds.GetCategoryItems(category.ID)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestSyncMetadataFilter(t *testing.T) {
	ds := setupTestDB(t)
	dir := writeDataDir(t, map[string]string{
		"item_groups/weapons.yaml": weaponsGroup,
		"categories/rifles.yaml": `
name: best-rifle
comparison_mode: single_choice
item_group: weapons
filter:
  metadata:
    class: rifle
`,
		"categories/long-range.yaml": `
name: best-long-range
comparison_mode: single_choice
item_group: weapons
filter:
  metadata:
    class:
      - rifle
      - sniper
`,
	})

	summary, err := New(ds, dir).SyncAll()
	require.NoError(t, err)
	assert.Empty(t, summary.Errors)

	rifles, err := ds.GetCategoryByName("best-rifle")
	require.NoError(t, err)
	items, err := ds.GetCategoryItems(rifles.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ak47", items[0].Name)

	longRange, err := ds.GetCategoryByName("best-long-range")
	require.NoError(t, err)
	items, err = ds.GetCategoryItems(longRange.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSyncExplicitItemList(t *testing.T) {
	ds := setupTestDB(t)
	dir := writeDataDir(t, map[string]string{
		"item_groups/weapons.yaml": weaponsGroup,
		"categories/duel.yaml": `
name: ak-vs-awp
comparison_mode: elo_tournament
items:
  - ak47
  - awp
  - does-not-exist
`,
	})

	summary, err := New(ds, dir).SyncAll()
	require.NoError(t, err)
	assert.Empty(t, summary.Errors)

	category, err := ds.GetCategoryByName("ak-vs-awp")
	require.NoError(t, err)
	items, err := ds.GetCategoryItems(category.ID)
	require.NoError(t, err)
	// The unknown item is skipped with a warning, not an error.
	assert.Len(t, items, 2)
}

func TestSyncCategorySettings(t *testing.T) {
	ds := setupTestDB(t)
	dir := writeDataDir(t, map[string]string{
		"item_groups/weapons.yaml": weaponsGroup,
		"categories/tiers.yaml": `
name: weapon-tiers
comparison_mode: tournament_tiers
is_active: false
item_group: weapons
settings:
  tier_options: ["S", "A", "B", "don't know"]
  private_results: true
`,
	})

	_, err := New(ds, dir).SyncAll()
	require.NoError(t, err)

	category, err := ds.GetCategoryByName("weapon-tiers")
	require.NoError(t, err)
	assert.False(t, category.IsActive)

	settings := category.ParseSettings()
	assert.True(t, settings.PrivateResults)
	assert.Equal(t, []string{"S", "A", "B", "don't know"}, settings.Tiers())
	assert.Equal(t, 4, settings.NumTiers())
}

func TestSyncCollectsPerFileErrors(t *testing.T) {
	ds := setupTestDB(t)
	dir := writeDataDir(t, map[string]string{
		"item_groups/weapons.yaml": weaponsGroup,
		"categories/broken.yaml": `
name: broken
comparison_mode: approval_voting
item_group: weapons
`,
		"categories/good.yaml": `
name: still-works
comparison_mode: single_choice
item_group: weapons
`,
		"categories/orphan.yaml": `
name: orphan
comparison_mode: single_choice
item_group: no-such-group
`,
	})

	summary, err := New(ds, dir).SyncAll()
	require.NoError(t, err)
	assert.Len(t, summary.Errors, 2)
	assert.Equal(t, 1, summary.CategoriesCreated)

	_, err = ds.GetCategoryByName("still-works")
	assert.NoError(t, err)
}

func TestSyncEmptyDataDir(t *testing.T) {
	ds := setupTestDB(t)

	summary, err := New(ds, t.TempDir()).SyncAll()
	require.NoError(t, err)
	assert.Empty(t, summary.Errors)
	assert.Zero(t, summary.CategoriesCreated)
}
