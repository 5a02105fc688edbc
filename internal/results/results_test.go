package results

import (
	"fmt"
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
		&datastore.Item{},
		&datastore.Category{},
		&datastore.CategoryItem{},
		&datastore.Vote{},
		&datastore.VoteChoice{},
		&datastore.EloRating{},
	))

	return &datastore.DataStore{DB: db}
}

func seedCategory(t *testing.T, ds *datastore.DataStore, mode datastore.ComparisonMode, settings string, n int) (*datastore.Category, []uint) {
	t.Helper()

	category := &datastore.Category{
		Name:           fmt.Sprintf("cat-%s", mode),
		ComparisonMode: mode,
		IsActive:       true,
		Settings:       settings,
	}
	require.NoError(t, ds.SaveCategory(category))

	itemIDs := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		item := &datastore.Item{Name: fmt.Sprintf("item-%d", i+1)}
		require.NoError(t, ds.SaveItem(item))
		require.NoError(t, ds.EnsureCategoryItem(category.ID, item.ID))
		itemIDs = append(itemIDs, item.ID)
	}
	return category, itemIDs
}

// castVote records one vote with explicit (item, rank) choices; nil rank
// entries are plain selections.
func castVote(t *testing.T, ds *datastore.DataStore, categoryID uint, voter int, choices map[uint]*int) {
	t.Helper()

	vote := &datastore.Vote{
		CategoryID:      categoryID,
		FingerprintHash: fmt.Sprintf("voter-%d", voter),
		IPHash:          "ip",
	}
	require.NoError(t, ds.CreateVote(vote))
	for itemID, rank := range choices {
		require.NoError(t, ds.CreateVoteChoice(&datastore.VoteChoice{
			VoteID: vote.ID,
			ItemID: itemID,
			Rank:   rank,
		}))
	}
}

func intp(v int) *int { return &v }

func TestComputeSingleChoice(t *testing.T) {
	ds := setupTestDB(t)
	category, items := seedCategory(t, ds, datastore.SingleChoice, "", 3)

	// Three voters for the second item, one for the first, none for the
	// third.
	castVote(t, ds, category.ID, 1, map[uint]*int{items[1]: nil})
	castVote(t, ds, category.ID, 2, map[uint]*int{items[1]: nil})
	castVote(t, ds, category.ID, 3, map[uint]*int{items[1]: nil})
	castVote(t, ds, category.ID, 4, map[uint]*int{items[0]: nil})

	results, err := NewAggregator(ds).Compute(category.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, results.TotalVotes)
	require.Len(t, results.Items, 3)

	top := results.Items[0]
	assert.Equal(t, items[1], top.ItemID)
	assert.Equal(t, 3, top.VoteCount)
	assert.InDelta(t, 75.0, top.Percentage, 0.001)
	require.NotNil(t, top.WilsonLower)
	require.NotNil(t, top.WilsonUpper)
	assert.Less(t, *top.WilsonLower, 75.0)
	assert.Greater(t, *top.WilsonUpper, 75.0)

	// The unvoted item still appears, with a degenerate interval.
	last := results.Items[2]
	assert.Equal(t, items[2], last.ItemID)
	assert.Zero(t, last.VoteCount)
	assert.Zero(t, last.Percentage)
	assert.GreaterOrEqual(t, *last.WilsonLower, 0.0)
}

func TestComputeEloTournament(t *testing.T) {
	ds := setupTestDB(t)
	category, items := seedCategory(t, ds, datastore.EloTournament, "", 3)

	require.NoError(t, ds.SaveEloRating(&datastore.EloRating{
		CategoryID: category.ID, ItemID: items[0], Rating: 1531.26, GamesPlayed: 2,
	}))
	require.NoError(t, ds.SaveEloRating(&datastore.EloRating{
		CategoryID: category.ID, ItemID: items[1], Rating: 1484.0, GamesPlayed: 2,
	}))

	results, err := NewAggregator(ds).Compute(category.ID)
	require.NoError(t, err)
	require.Len(t, results.Items, 3)

	assert.Equal(t, items[0], results.Items[0].ItemID)
	require.NotNil(t, results.Items[0].EloRating)
	assert.InDelta(t, 1531.26, *results.Items[0].EloRating, 0.001)
	// 2 games of 2 total matches = 2/4 participations.
	assert.InDelta(t, 50.0, results.Items[0].Percentage, 0.001)

	// The unplayed item carries the initial rating, which here beats the
	// losing side's 1484.
	unplayed := results.Items[1]
	assert.Equal(t, items[2], unplayed.ItemID)
	require.NotNil(t, unplayed.EloRating)
	assert.InDelta(t, 1500.0, *unplayed.EloRating, 0.001)
	assert.Zero(t, unplayed.Percentage)
	assert.Equal(t, items[1], results.Items[2].ItemID)
}

func TestComputeRankedList(t *testing.T) {
	ds := setupTestDB(t)
	category, items := seedCategory(t, ds, datastore.RankedList, "", 4)

	// Voter 1: A > B > C. Voter 2: B > A > C.
	castVote(t, ds, category.ID, 1, map[uint]*int{
		items[0]: intp(1), items[1]: intp(2), items[2]: intp(3),
	})
	castVote(t, ds, category.ID, 2, map[uint]*int{
		items[1]: intp(1), items[0]: intp(2), items[2]: intp(3),
	})

	results, err := NewAggregator(ds).Compute(category.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, results.TotalVotes)
	require.Len(t, results.Items, 4)

	// A and B tie at 1.5; the stable sort keeps item-id order.
	assert.Equal(t, items[0], results.Items[0].ItemID)
	assert.Equal(t, items[1], results.Items[1].ItemID)
	require.NotNil(t, results.Items[0].AverageRank)
	assert.InDelta(t, 1.5, *results.Items[0].AverageRank, 0.001)
	assert.InDelta(t, 1.5, *results.Items[1].AverageRank, 0.001)

	assert.Equal(t, items[2], results.Items[2].ItemID)
	assert.InDelta(t, 3.0, *results.Items[2].AverageRank, 0.001)

	// The never-ranked item sorts last with no average.
	assert.Equal(t, items[3], results.Items[3].ItemID)
	assert.Nil(t, results.Items[3].AverageRank)

	// Percentage is the share of first places per voter.
	assert.InDelta(t, 50.0, results.Items[0].Percentage, 0.001)
	assert.InDelta(t, 50.0, results.Items[1].Percentage, 0.001)
	assert.Zero(t, results.Items[2].Percentage)
}

func TestComputeTournamentTiers(t *testing.T) {
	ds := setupTestDB(t)
	settings := `{"tier_options":["S","A","B","don't know"]}`
	category, items := seedCategory(t, ds, datastore.TournamentTiers, settings, 2)

	// Two voters tier the first item (S and B), one says "don't know".
	castVote(t, ds, category.ID, 1, map[uint]*int{items[0]: intp(0)})
	castVote(t, ds, category.ID, 2, map[uint]*int{items[0]: intp(2)})
	castVote(t, ds, category.ID, 3, map[uint]*int{items[0]: intp(3)})

	results, err := NewAggregator(ds).Compute(category.ID)
	require.NoError(t, err)
	require.Len(t, results.Items, 2)

	tiered := results.Items[0]
	assert.Equal(t, items[0], tiered.ItemID)
	assert.Equal(t, 3, tiered.VoteCount)
	assert.Equal(t, map[string]int{"S": 1, "A": 0, "B": 1, "don't know": 1}, tiered.TierCounts)
	// "don't know" is excluded from the average: (0+2)/2.
	require.NotNil(t, tiered.AverageRank)
	assert.InDelta(t, 1.0, *tiered.AverageRank, 0.001)

	// The untouched item has a zero-filled distribution and no average.
	empty := results.Items[1]
	assert.Equal(t, items[1], empty.ItemID)
	assert.Equal(t, map[string]int{"S": 0, "A": 0, "B": 0, "don't know": 0}, empty.TierCounts)
	assert.Nil(t, empty.AverageRank)
}

func TestComputeTiersSentinelOnlyYieldsNoAverage(t *testing.T) {
	ds := setupTestDB(t)
	category, items := seedCategory(t, ds, datastore.TournamentTiers, "", 1)

	// Default tier list: index 6 is the sentinel.
	castVote(t, ds, category.ID, 1, map[uint]*int{items[0]: intp(6)})

	results, err := NewAggregator(ds).Compute(category.ID)
	require.NoError(t, err)
	require.Len(t, results.Items, 1)
	assert.Equal(t, 1, results.Items[0].VoteCount)
	assert.Nil(t, results.Items[0].AverageRank)
	assert.Equal(t, 1, results.Items[0].TierCounts["D"])
}

func TestComputeUsesDisplayName(t *testing.T) {
	ds := setupTestDB(t)
	category, items := seedCategory(t, ds, datastore.TournamentTiers, "", 1)

	item, err := ds.GetCategoryItems(category.ID)
	require.NoError(t, err)
	item[0].Metadata = `{"display_name":"AK-47"}`
	require.NoError(t, ds.SaveItem(&item[0]))

	results, err := NewAggregator(ds).Compute(category.ID)
	require.NoError(t, err)
	require.Len(t, results.Items, 1)
	assert.Equal(t, items[0], results.Items[0].ItemID)
	assert.Equal(t, "AK-47", results.Items[0].ItemName)
}

func TestComputeIsIdempotent(t *testing.T) {
	ds := setupTestDB(t)
	category, items := seedCategory(t, ds, datastore.SingleChoice, "", 2)
	castVote(t, ds, category.ID, 1, map[uint]*int{items[0]: nil})

	agg := NewAggregator(ds)
	first, err := agg.Compute(category.ID)
	require.NoError(t, err)
	second, err := agg.Compute(category.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeEmptyCategory(t *testing.T) {
	ds := setupTestDB(t)
	category, _ := seedCategory(t, ds, datastore.RankedList, "", 2)

	results, err := NewAggregator(ds).Compute(category.ID)
	require.NoError(t, err)
	assert.Zero(t, results.TotalVotes)
	assert.Len(t, results.Items, 2)
	for _, item := range results.Items {
		assert.Zero(t, item.VoteCount)
		assert.Zero(t, item.Percentage)
	}
}

func TestComputeUnknownModeYieldsEmptyList(t *testing.T) {
	ds := setupTestDB(t)
	category := &datastore.Category{Name: "odd", ComparisonMode: "approval", IsActive: true}
	require.NoError(t, ds.SaveCategory(category))

	results, err := NewAggregator(ds).Compute(category.ID)
	require.NoError(t, err)
	assert.Empty(t, results.Items)
}

func TestComputeMissingCategory(t *testing.T) {
	ds := setupTestDB(t)
	_, err := NewAggregator(ds).Compute(12345)
	require.Error(t, err)
	assert.True(t, datastore.IsNotFound(err))
}
