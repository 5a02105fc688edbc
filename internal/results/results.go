// Package results computes published voting statistics per category. Every
// aggregation is a pure function of stored state: recomputing with no new
// votes yields identical output, and every item configured for a category
// appears in the output whether or not it has votes.
package results

import (
	"fmt"
	"sort"

	"github.com/openvote/voteapi/internal/datastore"
	"github.com/openvote/voteapi/internal/stats"
	"github.com/openvote/voteapi/internal/telemetry"
)

// ItemResult is one item's outcome within a category's results. Pointer
// fields are present only for the modes that define them; AverageRank
// doubles as the average tier for tier categories and is nil when no
// countable votes exist.
type ItemResult struct {
	ItemID      uint           `json:"item_id"`
	ItemName    string         `json:"item_name"`
	ImageURL    string         `json:"image_url,omitempty"`
	VoteCount   int            `json:"vote_count"`
	Percentage  float64        `json:"percentage"`
	WilsonLower *float64       `json:"wilson_lower,omitempty"`
	WilsonUpper *float64       `json:"wilson_upper,omitempty"`
	EloRating   *float64       `json:"elo_rating,omitempty"`
	GamesPlayed *int           `json:"games_played,omitempty"`
	AverageRank *float64       `json:"average_rank,omitempty"`
	TierCounts  map[string]int `json:"tier_distribution,omitempty"`
}

// Results is the published outcome of a category.
type Results struct {
	CategoryID     uint                     `json:"category_id"`
	CategoryName   string                   `json:"category_name"`
	ComparisonMode datastore.ComparisonMode `json:"comparison_mode"`
	TotalVotes     int                      `json:"total_votes"`
	Items          []ItemResult             `json:"results"`
}

// Aggregator computes results from the persistence layer.
type Aggregator struct {
	store datastore.Interface
}

// NewAggregator returns an aggregator reading from store.
func NewAggregator(store datastore.Interface) *Aggregator {
	return &Aggregator{store: store}
}

// Compute builds the results for a category, dispatching on its comparison
// mode. A stored category with an unknown mode yields an empty item list.
func (a *Aggregator) Compute(categoryID uint) (*Results, error) {
	category, err := a.store.GetCategory(categoryID)
	if err != nil {
		return nil, fmt.Errorf("loading category: %w", err)
	}

	items, err := a.store.GetCategoryItems(categoryID)
	if err != nil {
		return nil, err
	}

	totalVotes, err := a.store.CountVotes(categoryID)
	if err != nil {
		return nil, err
	}

	var results []ItemResult
	switch category.ComparisonMode {
	case datastore.SingleChoice:
		results, err = a.singleChoice(category, items, totalVotes)
	case datastore.EloTournament:
		results, err = a.eloTournament(category, items)
	case datastore.RankedList:
		results, err = a.rankedList(category, items, totalVotes)
	case datastore.TournamentTiers:
		results, err = a.tournamentTiers(category, items, totalVotes)
	default:
		results = []ItemResult{}
	}
	if err != nil {
		return nil, err
	}

	telemetry.ResultsComputed.WithLabelValues(string(category.ComparisonMode)).Inc()

	return &Results{
		CategoryID:     category.ID,
		CategoryName:   category.Name,
		ComparisonMode: category.ComparisonMode,
		TotalVotes:     totalVotes,
		Items:          results,
	}, nil
}

// singleChoice counts choices per item with a Wilson interval on each
// share, sorted by percentage descending.
func (a *Aggregator) singleChoice(category *datastore.Category, items []datastore.Item, totalVotes int) ([]ItemResult, error) {
	counts, err := a.store.GetChoiceCounts(category.ID)
	if err != nil {
		return nil, err
	}

	results := make([]ItemResult, 0, len(items))
	for i := range items {
		item := &items[i]
		count := counts[item.ID]
		lower, upper := stats.WilsonInterval(count, totalVotes, 0.95)

		results = append(results, ItemResult{
			ItemID:      item.ID,
			ItemName:    item.Name,
			ImageURL:    item.ImageURL,
			VoteCount:   count,
			Percentage:  stats.Round2(stats.Percentage(count, totalVotes)),
			WilsonLower: &lower,
			WilsonUpper: &upper,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Percentage > results[j].Percentage
	})
	return results, nil
}

// eloTournament reads the rating rows, defaulting unplayed items to the
// initial rating, sorted by rating descending. The published percentage is
// each item's share of match participations; win counts are not
// reconstructible from ratings alone.
func (a *Aggregator) eloTournament(category *datastore.Category, items []datastore.Item) ([]ItemResult, error) {
	ratings, err := a.store.GetEloRatings(category.ID)
	if err != nil {
		return nil, err
	}

	byItem := make(map[uint]*datastore.EloRating, len(ratings))
	totalGames := 0
	for i := range ratings {
		byItem[ratings[i].ItemID] = &ratings[i]
		totalGames += ratings[i].GamesPlayed
	}
	// Every match increments two rows.
	totalGames /= 2

	results := make([]ItemResult, 0, len(items))
	for i := range items {
		item := &items[i]
		rating := 1500.0
		gamesPlayed := 0
		if r, ok := byItem[item.ID]; ok {
			rating = r.Rating
			gamesPlayed = r.GamesPlayed
		}

		percentage := 0.0
		if totalGames > 0 {
			percentage = stats.Round2(stats.Percentage(gamesPlayed, totalGames*2))
		}

		eloRating := stats.Round2(rating)
		games := gamesPlayed
		results = append(results, ItemResult{
			ItemID:      item.ID,
			ItemName:    item.Name,
			ImageURL:    item.ImageURL,
			VoteCount:   gamesPlayed,
			Percentage:  percentage,
			EloRating:   &eloRating,
			GamesPlayed: &games,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].EloRating > *results[j].EloRating
	})
	return results, nil
}

// rankedList averages recorded preference positions per item. The
// percentage is the share of voters who ranked the item first. Items are
// sorted by average rank ascending with unranked items last.
func (a *Aggregator) rankedList(category *datastore.Category, items []datastore.Item, totalVotes int) ([]ItemResult, error) {
	choices, err := a.store.GetRankedChoices(category.ID)
	if err != nil {
		return nil, err
	}

	ranksByItem := make(map[uint][]int)
	for _, choice := range choices {
		if choice.Rank == nil {
			continue
		}
		ranksByItem[choice.ItemID] = append(ranksByItem[choice.ItemID], *choice.Rank)
	}

	results := make([]ItemResult, 0, len(items))
	for i := range items {
		item := &items[i]
		ranks := ranksByItem[item.ID]

		firstPlace := 0
		for _, r := range ranks {
			if r == 1 {
				firstPlace++
			}
		}

		result := ItemResult{
			ItemID:     item.ID,
			ItemName:   item.Name,
			ImageURL:   item.ImageURL,
			VoteCount:  len(ranks),
			Percentage: stats.Round2(stats.Percentage(firstPlace, totalVotes)),
		}
		if avg, ok := stats.AverageRank(ranks); ok {
			result.AverageRank = &avg
		}
		results = append(results, result)
	}

	sortByAverageRank(results)
	return results, nil
}

// tournamentTiers builds a per-item tier distribution over the configured
// tier labels and averages tier indices, excluding the last configured
// tier which serves as the "don't know" sentinel. Display names prefer the
// item metadata's display_name.
func (a *Aggregator) tournamentTiers(category *datastore.Category, items []datastore.Item, totalVotes int) ([]ItemResult, error) {
	settings := category.ParseSettings()
	tierOptions := settings.Tiers()

	choices, err := a.store.GetRankedChoices(category.ID)
	if err != nil {
		return nil, err
	}

	tiersByItem := make(map[uint][]int)
	for _, choice := range choices {
		if choice.Rank == nil {
			continue
		}
		tiersByItem[choice.ItemID] = append(tiersByItem[choice.ItemID], *choice.Rank)
	}

	results := make([]ItemResult, 0, len(items))
	for i := range items {
		item := &items[i]
		tiers := tiersByItem[item.ID]

		distribution := make(map[string]int, len(tierOptions))
		for _, label := range tierOptions {
			distribution[label] = 0
		}
		for _, tierIndex := range tiers {
			if tierIndex >= 0 && tierIndex < len(tierOptions) {
				distribution[tierOptions[tierIndex]]++
			}
		}

		// The last tier is the "don't know" answer; it counts toward the
		// distribution but not toward the average.
		countable := make([]int, 0, len(tiers))
		for _, tierIndex := range tiers {
			if tierIndex < len(tierOptions)-1 {
				countable = append(countable, tierIndex)
			}
		}

		result := ItemResult{
			ItemID:     item.ID,
			ItemName:   item.DisplayName(),
			ImageURL:   item.ImageURL,
			VoteCount:  len(tiers),
			Percentage: stats.Round2(stats.Percentage(len(tiers), totalVotes)),
			TierCounts: distribution,
		}
		if avg, ok := stats.AverageRank(countable); ok {
			result.AverageRank = &avg
		}
		results = append(results, result)
	}

	sortByAverageRank(results)
	return results, nil
}

// sortByAverageRank orders results ascending by average rank, items without
// one last. The sort is stable so equal averages keep item-id order.
func sortByAverageRank(results []ItemResult) {
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := results[i].AverageRank, results[j].AverageRank
		switch {
		case ri == nil:
			return false
		case rj == nil:
			return true
		default:
			return *ri < *rj
		}
	})
}
