package voting

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/openvote/voteapi/internal/abuse"
	"github.com/openvote/voteapi/internal/datastore"
	"github.com/openvote/voteapi/internal/elo"
	"github.com/openvote/voteapi/internal/identity"
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
		&datastore.Vote{},
		&datastore.VoteChoice{},
		&datastore.Comment{},
		&datastore.EloRating{},
	))

	return &datastore.DataStore{DB: db}
}

func setupService(t *testing.T) (*Service, *datastore.DataStore) {
	t.Helper()
	ds := setupTestDB(t)
	svc := NewService(ds, abuse.Noop{}, identity.NewHasher("test-pepper"), elo.NewEngine(0, 0))
	return svc, ds
}

// seedCategory creates an active category with n items and returns the
// item ids as ints matching the Choices payload type.
func seedCategory(t *testing.T, ds *datastore.DataStore, mode datastore.ComparisonMode, settings string, n int) (*datastore.Category, []int) {
	t.Helper()

	category := &datastore.Category{
		Name:           fmt.Sprintf("cat-%s", mode),
		ComparisonMode: mode,
		IsActive:       true,
		Settings:       settings,
	}
	require.NoError(t, ds.SaveCategory(category))

	choices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		item := &datastore.Item{Name: fmt.Sprintf("item-%d", i+1)}
		require.NoError(t, ds.SaveItem(item))
		require.NoError(t, ds.EnsureCategoryItem(category.ID, item.ID))
		choices = append(choices, int(item.ID))
	}
	return category, choices
}

func fingerprint(seed byte) string {
	return strings.Repeat(string([]byte{'a' + seed%6, '0' + seed%10}), 32)
}

func TestSubmitSingleChoice(t *testing.T) {
	svc, ds := setupService(t)
	category, items := seedCategory(t, ds, datastore.SingleChoice, "", 3)

	vote, err := svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(0),
		ClientIP:    "203.0.113.7",
		Choices:     []int{items[1]},
	})
	require.NoError(t, err)
	require.NotNil(t, vote)
	assert.NotZero(t, vote.ID)
	assert.Equal(t, fingerprint(0), vote.FingerprintHash)
	// The raw IP never reaches storage.
	assert.NotContains(t, vote.IPHash, "203.0.113.7")
	assert.Len(t, vote.IPHash, 64)

	choice, err := ds.GetVoteChoice(vote.ID, uint(items[1]))
	require.NoError(t, err)
	assert.Nil(t, choice.Rank)
}

func TestSubmitRejectsInvalidFingerprint(t *testing.T) {
	svc, ds := setupService(t)
	category, items := seedCategory(t, ds, datastore.SingleChoice, "", 1)

	for _, fp := range []string{"", "short", strings.Repeat("z", 64)} {
		_, err := svc.Submit(context.Background(), &SubmitRequest{
			CategoryID:  category.ID,
			Fingerprint: fp,
			ClientIP:    "203.0.113.7",
			Choices:     []int{items[0]},
		})
		assert.ErrorIs(t, err, ErrInvalidFingerprint)
	}
}

func TestSubmitDuplicateVote(t *testing.T) {
	svc, ds := setupService(t)
	category, items := seedCategory(t, ds, datastore.SingleChoice, "", 2)

	req := &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(1),
		ClientIP:    "203.0.113.7",
		Choices:     []int{items[0]},
	}
	_, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	// Same voter again, even with a different choice and IP.
	req.Choices = []int{items[1]}
	req.ClientIP = "203.0.113.8"
	_, err = svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrDuplicateVote)

	count, err := ds.CountVotes(category.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSubmitCategoryChecks(t *testing.T) {
	svc, ds := setupService(t)

	_, err := svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  9999,
		Fingerprint: fingerprint(2),
		ClientIP:    "203.0.113.7",
		Choices:     []int{1},
	})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	category, items := seedCategory(t, ds, datastore.SingleChoice, "", 1)
	require.NoError(t, ds.SetCategoryActive(category.ID, false))

	_, err = svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(2),
		ClientIP:    "203.0.113.7",
		Choices:     []int{items[0]},
	})
	assert.ErrorIs(t, err, ErrCategoryInactive)
}

func TestSubmitItemEligibility(t *testing.T) {
	svc, ds := setupService(t)
	category, _ := seedCategory(t, ds, datastore.SingleChoice, "", 1)

	// An item that exists but is linked to a different category.
	_, otherItems := seedCategory(t, ds, datastore.SingleChoice, "", 1)

	_, err := svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(3),
		ClientIP:    "203.0.113.7",
		Choices:     []int{otherItems[0]},
	})
	assert.ErrorIs(t, err, ErrItemNotInCategory)

	// Negative ids never pass eligibility.
	_, err = svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(3),
		ClientIP:    "203.0.113.7",
		Choices:     []int{-1},
	})
	assert.ErrorIs(t, err, ErrItemNotInCategory)
}

func TestSubmitChoiceShapes(t *testing.T) {
	svc, ds := setupService(t)

	single, singleItems := seedCategory(t, ds, datastore.SingleChoice, "", 3)
	tourney, tourneyItems := seedCategory(t, ds, datastore.EloTournament, "", 3)
	ranked, rankedItems := seedCategory(t, ds, datastore.RankedList, "", 3)
	tiers, tierItems := seedCategory(t, ds, datastore.TournamentTiers, "", 3)

	cases := []struct {
		name       string
		categoryID uint
		choices    []int
		wantErr    error
	}{
		{"single with two items", single.ID, []int{singleItems[0], singleItems[1]}, ErrInvalidChoiceShape},
		{"single with none", single.ID, []int{}, ErrInvalidChoiceShape},
		{"tournament with one item", tourney.ID, []int{tourneyItems[0]}, ErrInvalidChoiceShape},
		{"tournament with three items", tourney.ID, []int{tourneyItems[0], tourneyItems[1], tourneyItems[2]}, ErrInvalidChoiceShape},
		{"tournament self match", tourney.ID, []int{tourneyItems[0], tourneyItems[0]}, ErrInvalidChoiceShape},
		{"ranked with one item", ranked.ID, []int{rankedItems[0]}, ErrInvalidChoiceShape},
		{"tiers odd payload", tiers.ID, []int{tierItems[0], 1, tierItems[1]}, ErrInvalidChoiceShape},
		{"tiers empty payload", tiers.ID, []int{}, ErrInvalidChoiceShape},
		{"tiers tier out of range", tiers.ID, []int{tierItems[0], 7}, ErrInvalidTierIndex},
		{"tiers negative tier", tiers.ID, []int{tierItems[0], -1}, ErrInvalidTierIndex},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), &SubmitRequest{
				CategoryID:  tc.categoryID,
				Fingerprint: fingerprint(byte(10 + i)),
				ClientIP:    "203.0.113.7",
				Choices:     tc.choices,
			})
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestSubmitEloRecordsMatch(t *testing.T) {
	svc, ds := setupService(t)
	category, items := seedCategory(t, ds, datastore.EloTournament, "", 2)

	_, err := svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(4),
		ClientIP:    "203.0.113.7",
		Choices:     []int{items[0], items[1]},
	})
	require.NoError(t, err)

	winner, err := ds.GetEloRating(category.ID, uint(items[0]))
	require.NoError(t, err)
	assert.InDelta(t, 1516.0, winner.Rating, 0.001)
	assert.Equal(t, 1, winner.GamesPlayed)

	loser, err := ds.GetEloRating(category.ID, uint(items[1]))
	require.NoError(t, err)
	assert.InDelta(t, 1484.0, loser.Rating, 0.001)
}

func TestSubmitRejectionLeavesRatingsUntouched(t *testing.T) {
	svc, ds := setupService(t)
	category, items := seedCategory(t, ds, datastore.EloTournament, "", 2)

	// Self-match is rejected before anything persists.
	_, err := svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(5),
		ClientIP:    "203.0.113.7",
		Choices:     []int{items[0], items[0]},
	})
	require.ErrorIs(t, err, ErrInvalidChoiceShape)

	_, err = ds.GetEloRating(category.ID, uint(items[0]))
	assert.True(t, datastore.IsNotFound(err))

	count, err := ds.CountVotes(category.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSubmitRankedListPersistsPositions(t *testing.T) {
	svc, ds := setupService(t)
	category, items := seedCategory(t, ds, datastore.RankedList, "", 3)

	_, err := svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(6),
		ClientIP:    "203.0.113.7",
		Choices:     []int{items[2], items[0], items[1]},
	})
	require.NoError(t, err)

	choices, err := ds.GetRankedChoices(category.ID)
	require.NoError(t, err)
	require.Len(t, choices, 3)

	ranks := make(map[uint]int)
	for _, c := range choices {
		require.NotNil(t, c.Rank)
		ranks[c.ItemID] = *c.Rank
	}
	assert.Equal(t, 1, ranks[uint(items[2])])
	assert.Equal(t, 2, ranks[uint(items[0])])
	assert.Equal(t, 3, ranks[uint(items[1])])
}

func TestSubmitTiersPersistsPairs(t *testing.T) {
	svc, ds := setupService(t)
	settings := `{"tier_options":["S","A","B","don't know"]}`
	category, items := seedCategory(t, ds, datastore.TournamentTiers, settings, 2)

	_, err := svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(7),
		ClientIP:    "203.0.113.7",
		Choices:     []int{items[0], 0, items[1], 3},
	})
	require.NoError(t, err)

	choices, err := ds.GetRankedChoices(category.ID)
	require.NoError(t, err)
	assert.Len(t, choices, 2)

	// Tier index 4 exceeds the four configured tiers.
	_, err = svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(8),
		ClientIP:    "203.0.113.7",
		Choices:     []int{items[0], 4},
	})
	assert.ErrorIs(t, err, ErrInvalidTierIndex)
}

func TestSubmitWithComment(t *testing.T) {
	svc, ds := setupService(t)
	category, items := seedCategory(t, ds, datastore.SingleChoice, "", 1)

	vote, err := svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(9),
		ClientIP:    "203.0.113.7",
		Choices:     []int{items[0]},
		Comment:     "great lineup",
	})
	require.NoError(t, err)

	comment, err := ds.GetCommentByVoteID(vote.ID)
	require.NoError(t, err)
	assert.Equal(t, "great lineup", comment.Content)
	assert.False(t, comment.IsApproved)
}

func TestSubmitSuspiciousActivityBlocked(t *testing.T) {
	ds := setupTestDB(t)
	svc := NewService(ds, blockingOracle{}, identity.NewHasher("test-pepper"), elo.NewEngine(0, 0))
	category, items := seedCategory(t, ds, datastore.SingleChoice, "", 1)

	_, err := svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(10),
		ClientIP:    "203.0.113.7",
		Choices:     []int{items[0]},
	})
	assert.ErrorIs(t, err, ErrSuspiciousActivity)

	count, err := ds.CountVotes(category.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// blockingOracle flags every attempt as suspicious.
type blockingOracle struct{}

func (blockingOracle) CheckSuspicious(context.Context, string, string) (bool, string) {
	return true, "too many fingerprints for ip"
}

func (blockingOracle) RecordAttempt(context.Context, string, string, uint, bool) {}

func TestUpsertTierCreatesThenUpdates(t *testing.T) {
	svc, ds := setupService(t)
	category, items := seedCategory(t, ds, datastore.TournamentTiers, "", 3)

	req := &UpsertTierRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(11),
		ClientIP:    "203.0.113.7",
		ItemID:      uint(items[0]),
		TierIndex:   2,
	}
	vote, err := svc.UpsertTier(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, vote)

	choice, err := ds.GetVoteChoice(vote.ID, uint(items[0]))
	require.NoError(t, err)
	require.NotNil(t, choice.Rank)
	assert.Equal(t, 2, *choice.Rank)

	// Re-tiering the same item keeps one choice row with the latest tier.
	req.TierIndex = 5
	again, err := svc.UpsertTier(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, vote.ID, again.ID)

	choice, err = ds.GetVoteChoice(vote.ID, uint(items[0]))
	require.NoError(t, err)
	assert.Equal(t, 5, *choice.Rank)

	// A second item lands on the same vote row.
	req.ItemID = uint(items[1])
	req.TierIndex = 0
	third, err := svc.UpsertTier(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, vote.ID, third.ID)

	count, err := ds.CountVotes(category.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertTierValidation(t *testing.T) {
	svc, ds := setupService(t)
	tiers, items := seedCategory(t, ds, datastore.TournamentTiers, "", 1)
	single, singleItems := seedCategory(t, ds, datastore.SingleChoice, "", 1)

	_, err := svc.UpsertTier(context.Background(), &UpsertTierRequest{
		CategoryID:  single.ID,
		Fingerprint: fingerprint(12),
		ClientIP:    "203.0.113.7",
		ItemID:      uint(singleItems[0]),
		TierIndex:   0,
	})
	assert.ErrorIs(t, err, ErrInvalidChoiceShape)

	_, err = svc.UpsertTier(context.Background(), &UpsertTierRequest{
		CategoryID:  tiers.ID,
		Fingerprint: fingerprint(12),
		ClientIP:    "203.0.113.7",
		ItemID:      uint(singleItems[0]),
		TierIndex:   0,
	})
	assert.ErrorIs(t, err, ErrItemNotInCategory)

	// Default tier list has seven entries, index 7 is out of range.
	_, err = svc.UpsertTier(context.Background(), &UpsertTierRequest{
		CategoryID:  tiers.ID,
		Fingerprint: fingerprint(12),
		ClientIP:    "203.0.113.7",
		ItemID:      uint(items[0]),
		TierIndex:   7,
	})
	assert.ErrorIs(t, err, ErrInvalidTierIndex)
}

func TestStatus(t *testing.T) {
	svc, ds := setupService(t)
	category, items := seedCategory(t, ds, datastore.SingleChoice, "", 1)

	vote, err := svc.Status(category.ID, fingerprint(13))
	require.NoError(t, err)
	assert.Nil(t, vote)

	_, err = svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(13),
		ClientIP:    "203.0.113.7",
		Choices:     []int{items[0]},
	})
	require.NoError(t, err)

	vote, err = svc.Status(category.ID, fingerprint(13))
	require.NoError(t, err)
	require.NotNil(t, vote)

	_, err = svc.Status(category.ID, "not-a-fingerprint")
	assert.ErrorIs(t, err, ErrInvalidFingerprint)
}

func TestSubmitComment(t *testing.T) {
	svc, ds := setupService(t)
	category, items := seedCategory(t, ds, datastore.SingleChoice, "", 1)

	err := svc.SubmitComment(9999, "orphan")
	assert.ErrorIs(t, err, ErrVoteNotFound)

	vote, err := svc.Submit(context.Background(), &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(14),
		ClientIP:    "203.0.113.7",
		Choices:     []int{items[0]},
	})
	require.NoError(t, err)

	require.NoError(t, svc.SubmitComment(vote.ID, "solid picks"))
	assert.ErrorIs(t, svc.SubmitComment(vote.ID, "changed my mind"), ErrCommentExists)
}

// hidingStore wraps a real store but always reports no existing vote, so
// two submissions can race past the duplicate pre-check and only the unique
// index inside the transaction stands between them.
type hidingStore struct {
	datastore.Interface
}

func (h *hidingStore) GetVote(uint, string) (*datastore.Vote, error) {
	return nil, gorm.ErrRecordNotFound
}

func (h *hidingStore) Transaction(fn func(tx datastore.Interface) error) error {
	return h.Interface.Transaction(func(tx datastore.Interface) error {
		return fn(&hidingStore{Interface: tx})
	})
}

func TestSubmitDuplicateRaceHitsUniqueIndex(t *testing.T) {
	svc, ds := setupService(t)
	category, items := seedCategory(t, ds, datastore.SingleChoice, "", 3)

	req := &SubmitRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(15),
		ClientIP:    "203.0.113.7",
		Choices:     []int{items[0]},
	}
	_, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	// The second racer saw no vote during the pre-check, so the
	// constraint violation on insert is what turns into DuplicateVote.
	racing := NewService(&hidingStore{Interface: ds}, abuse.Noop{},
		identity.NewHasher("test-pepper"), elo.NewEngine(0, 0))
	_, err = racing.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrDuplicateVote)

	count, err := ds.CountVotes(category.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertTierDuplicateRaceHitsUniqueIndex(t *testing.T) {
	svc, ds := setupService(t)
	category, items := seedCategory(t, ds, datastore.TournamentTiers, "", 2)

	req := &UpsertTierRequest{
		CategoryID:  category.ID,
		Fingerprint: fingerprint(16),
		ClientIP:    "203.0.113.7",
		ItemID:      uint(items[0]),
		TierIndex:   1,
	}
	_, err := svc.UpsertTier(context.Background(), req)
	require.NoError(t, err)

	racing := NewService(&hidingStore{Interface: ds}, abuse.Noop{},
		identity.NewHasher("test-pepper"), elo.NewEngine(0, 0))
	_, err = racing.UpsertTier(context.Background(), req)
	assert.ErrorIs(t, err, ErrDuplicateVote)

	count, err := ds.CountVotes(category.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
