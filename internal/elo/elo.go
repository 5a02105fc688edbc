// Package elo maintains pairwise ELO ratings for tournament-style
// categories. Ratings are an online accumulator: each match mutates the
// two participating rows in place and there is no replay from the vote
// log, so match order matters.
package elo

import (
	"fmt"
	"math"
	"time"

	"github.com/openvote/voteapi/internal/datastore"
	"github.com/openvote/voteapi/internal/stats"
)

const (
	// DefaultKFactor is the maximum rating swing per match.
	DefaultKFactor = 32.0
	// DefaultInitialRating is the rating assigned before an item's first
	// match.
	DefaultInitialRating = 1500.0
)

// Update applies the ELO update rule to the winner's and loser's current
// ratings and returns the new pair, each rounded to two decimal places.
func Update(winnerRating, loserRating, kFactor float64) (newWinner, newLoser float64) {
	expectedWinner := 1 / (1 + math.Pow(10, (loserRating-winnerRating)/400))
	expectedLoser := 1 - expectedWinner

	newWinner = winnerRating + kFactor*(1-expectedWinner)
	newLoser = loserRating + kFactor*(0-expectedLoser)

	return stats.Round2(newWinner), stats.Round2(newLoser)
}

// Engine records matches against the persistence layer.
type Engine struct {
	KFactor       float64
	InitialRating float64
}

// NewEngine returns an engine with the given tuning; zero values select
// the defaults.
func NewEngine(kFactor, initialRating float64) *Engine {
	if kFactor == 0 {
		kFactor = DefaultKFactor
	}
	if initialRating == 0 {
		initialRating = DefaultInitialRating
	}
	return &Engine{KFactor: kFactor, InitialRating: initialRating}
}

// RecordMatch loads or initializes both items' ratings, applies the update
// rule and persists the result, incrementing each side's game counter.
// Callers invoke this inside the same transaction as the vote insert so a
// failed submission never moves ratings.
func (e *Engine) RecordMatch(store datastore.Interface, categoryID, winnerID, loserID uint) (newWinner, newLoser float64, err error) {
	winner, err := e.getOrCreateRating(store, categoryID, winnerID)
	if err != nil {
		return 0, 0, err
	}
	loser, err := e.getOrCreateRating(store, categoryID, loserID)
	if err != nil {
		return 0, 0, err
	}

	newWinner, newLoser = Update(winner.Rating, loser.Rating, e.KFactor)
	now := time.Now().UTC()

	winner.Rating = newWinner
	winner.GamesPlayed++
	winner.UpdatedAt = now
	if err := store.SaveEloRating(winner); err != nil {
		return 0, 0, fmt.Errorf("recording match winner: %w", err)
	}

	loser.Rating = newLoser
	loser.GamesPlayed++
	loser.UpdatedAt = now
	if err := store.SaveEloRating(loser); err != nil {
		return 0, 0, fmt.Errorf("recording match loser: %w", err)
	}

	return newWinner, newLoser, nil
}

func (e *Engine) getOrCreateRating(store datastore.Interface, categoryID, itemID uint) (*datastore.EloRating, error) {
	rating, err := store.GetEloRating(categoryID, itemID)
	if err == nil {
		return rating, nil
	}
	if !datastore.IsNotFound(err) {
		return nil, fmt.Errorf("loading elo rating: %w", err)
	}

	rating = &datastore.EloRating{
		CategoryID:  categoryID,
		ItemID:      itemID,
		Rating:      e.InitialRating,
		GamesPlayed: 0,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := store.SaveEloRating(rating); err != nil {
		return nil, fmt.Errorf("initializing elo rating: %w", err)
	}
	return rating, nil
}
