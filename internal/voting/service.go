// Package voting implements the vote admission state machine: per
// comparison-mode validation and transactional acceptance of vote
// submissions.
package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openvote/voteapi/internal/abuse"
	"github.com/openvote/voteapi/internal/datastore"
	"github.com/openvote/voteapi/internal/elo"
	"github.com/openvote/voteapi/internal/identity"
	"github.com/openvote/voteapi/internal/logging"
	"github.com/openvote/voteapi/internal/telemetry"
)

// SubmitRequest is a candidate vote submission. Choices carries the
// mode-specific payload: a single item id, a (winner, loser) pair, a
// preference-ordered item list, or (item id, tier index) pairs.
type SubmitRequest struct {
	CategoryID  uint
	Fingerprint string
	ClientIP    string
	Choices     []int
	Comment     string
}

// UpsertTierRequest places one item into a tier for a voter, creating the
// voter's vote row on first use. Only tournament_tiers categories accept
// this path.
type UpsertTierRequest struct {
	CategoryID  uint
	Fingerprint string
	ClientIP    string
	ItemID      uint
	TierIndex   int
}

// Service runs vote submissions through validation and persistence.
type Service struct {
	store  datastore.Interface
	oracle abuse.Oracle
	hasher *identity.Hasher
	engine *elo.Engine
	logger *slog.Logger
}

// NewService assembles the admission service.
func NewService(store datastore.Interface, oracle abuse.Oracle, hasher *identity.Hasher, engine *elo.Engine) *Service {
	if oracle == nil {
		oracle = abuse.Noop{}
	}
	return &Service{
		store:  store,
		oracle: oracle,
		hasher: hasher,
		engine: engine,
		logger: logging.ForService("voting"),
	}
}

// Submit validates and persists one vote. On success the vote row, its
// choices, any ELO update and any comment are committed atomically; on any
// failure nothing is persisted and the specific rejection reason is
// returned.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*datastore.Vote, error) {
	if !identity.ValidFingerprint(req.Fingerprint) {
		return nil, ErrInvalidFingerprint
	}
	ipHash := s.hasher.HashIP(req.ClientIP)

	if suspicious, reason := s.oracle.CheckSuspicious(ctx, ipHash, req.Fingerprint); suspicious {
		s.logger.Warn("vote rejected as suspicious",
			"category_id", req.CategoryID, "reason", reason)
		telemetry.VotesRejected.WithLabelValues("suspicious").Inc()
		s.oracle.RecordAttempt(ctx, ipHash, req.Fingerprint, req.CategoryID, false)
		return nil, fmt.Errorf("%w: %s", ErrSuspiciousActivity, reason)
	}

	category, err := s.loadActiveCategory(req.CategoryID)
	if err != nil {
		return nil, s.reject(ctx, ipHash, req.Fingerprint, req.CategoryID, err)
	}

	if _, err := s.store.GetVote(req.CategoryID, req.Fingerprint); err == nil {
		return nil, s.reject(ctx, ipHash, req.Fingerprint, req.CategoryID, ErrDuplicateVote)
	} else if !datastore.IsNotFound(err) {
		return nil, fmt.Errorf("checking for existing vote: %w", err)
	}

	if err := s.validateChoices(category, req.Choices); err != nil {
		return nil, s.reject(ctx, ipHash, req.Fingerprint, req.CategoryID, err)
	}

	vote := &datastore.Vote{
		CategoryID:      req.CategoryID,
		FingerprintHash: req.Fingerprint,
		IPHash:          ipHash,
	}

	err = s.store.Transaction(func(tx datastore.Interface) error {
		if err := tx.CreateVote(vote); err != nil {
			if datastore.IsUniqueConstraintViolation(err) {
				// Lost a concurrent duplicate-submission race.
				return ErrDuplicateVote
			}
			return err
		}

		if err := s.persistChoices(tx, category, vote, req.Choices); err != nil {
			return err
		}

		if category.ComparisonMode == datastore.EloTournament {
			winnerID, loserID := uint(req.Choices[0]), uint(req.Choices[1])
			if _, _, err := s.engine.RecordMatch(tx, category.ID, winnerID, loserID); err != nil {
				return err
			}
			telemetry.EloMatchesRecorded.Inc()
		}

		if req.Comment != "" {
			comment := &datastore.Comment{
				VoteID:     vote.ID,
				Content:    req.Comment,
				IsApproved: false,
			}
			if err := tx.CreateComment(comment); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, ipHash, req.Fingerprint, req.CategoryID, err)
	}

	telemetry.VotesAccepted.WithLabelValues(string(category.ComparisonMode)).Inc()
	s.oracle.RecordAttempt(ctx, ipHash, req.Fingerprint, req.CategoryID, true)
	s.logger.Info("vote recorded",
		"category_id", category.ID, "vote_id", vote.ID, "mode", category.ComparisonMode)

	return vote, nil
}

// UpsertTier finds or creates the voter's vote in a tournament_tiers
// category, then places one item into a tier, updating the existing choice
// row if the item was already tiered. The abuse oracle is consulted only
// when a new vote row would be created; later tier edits are plain
// updates.
func (s *Service) UpsertTier(ctx context.Context, req *UpsertTierRequest) (*datastore.Vote, error) {
	if !identity.ValidFingerprint(req.Fingerprint) {
		return nil, ErrInvalidFingerprint
	}
	ipHash := s.hasher.HashIP(req.ClientIP)

	category, err := s.loadActiveCategory(req.CategoryID)
	if err != nil {
		return nil, err
	}
	if category.ComparisonMode != datastore.TournamentTiers {
		return nil, fmt.Errorf("%w: incremental tiering is only supported for tournament_tiers categories", ErrInvalidChoiceShape)
	}

	itemIDs, err := s.store.GetCategoryItemIDs(req.CategoryID)
	if err != nil {
		return nil, err
	}
	if _, ok := itemIDs[req.ItemID]; !ok {
		return nil, fmt.Errorf("%w: item %d", ErrItemNotInCategory, req.ItemID)
	}

	settings := category.ParseSettings()
	if req.TierIndex < 0 || req.TierIndex >= settings.NumTiers() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTierIndex, req.TierIndex)
	}

	var vote *datastore.Vote
	err = s.store.Transaction(func(tx datastore.Interface) error {
		existing, err := tx.GetVote(req.CategoryID, req.Fingerprint)
		switch {
		case err == nil:
			vote = existing
		case datastore.IsNotFound(err):
			if suspicious, reason := s.oracle.CheckSuspicious(ctx, ipHash, req.Fingerprint); suspicious {
				telemetry.VotesRejected.WithLabelValues("suspicious").Inc()
				return fmt.Errorf("%w: %s", ErrSuspiciousActivity, reason)
			}
			vote = &datastore.Vote{
				CategoryID:      req.CategoryID,
				FingerprintHash: req.Fingerprint,
				IPHash:          ipHash,
			}
			if err := tx.CreateVote(vote); err != nil {
				if datastore.IsUniqueConstraintViolation(err) {
					return ErrDuplicateVote
				}
				return err
			}
		default:
			return err
		}

		tierIndex := req.TierIndex
		choice, err := tx.GetVoteChoice(vote.ID, req.ItemID)
		switch {
		case err == nil:
			choice.Rank = &tierIndex
			return tx.SaveVoteChoice(choice)
		case datastore.IsNotFound(err):
			return tx.CreateVoteChoice(&datastore.VoteChoice{
				VoteID: vote.ID,
				ItemID: req.ItemID,
				Rank:   &tierIndex,
			})
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	return vote, nil
}

// Status reports whether a voter has a recorded vote in a category.
func (s *Service) Status(categoryID uint, fingerprint string) (*datastore.Vote, error) {
	if !identity.ValidFingerprint(fingerprint) {
		return nil, ErrInvalidFingerprint
	}

	vote, err := s.store.GetVote(categoryID, fingerprint)
	if err != nil {
		if datastore.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return vote, nil
}

// SubmitComment attaches free text to an existing vote. Comments start
// unapproved and become visible only after moderation.
func (s *Service) SubmitComment(voteID uint, content string) error {
	if _, err := s.store.GetVoteByID(voteID); err != nil {
		if datastore.IsNotFound(err) {
			return ErrVoteNotFound
		}
		return err
	}

	if _, err := s.store.GetCommentByVoteID(voteID); err == nil {
		return ErrCommentExists
	} else if !datastore.IsNotFound(err) {
		return err
	}

	comment := &datastore.Comment{
		VoteID:     voteID,
		Content:    content,
		IsApproved: false,
	}
	if err := s.store.CreateComment(comment); err != nil {
		if datastore.IsUniqueConstraintViolation(err) {
			return ErrCommentExists
		}
		return err
	}
	return nil
}

// loadActiveCategory loads a category and verifies voting is open.
func (s *Service) loadActiveCategory(categoryID uint) (*datastore.Category, error) {
	category, err := s.store.GetCategory(categoryID)
	if err != nil {
		if datastore.IsNotFound(err) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	if !category.IsActive {
		return nil, ErrCategoryInactive
	}
	return category, nil
}

// validateChoices runs eligibility and the per-mode count/shape rules.
func (s *Service) validateChoices(category *datastore.Category, choices []int) error {
	itemIDs, err := s.store.GetCategoryItemIDs(category.ID)
	if err != nil {
		return err
	}

	// In tournament_tiers payloads only the even-indexed elements are
	// item ids; the odd positions carry tier indices.
	toCheck := choices
	if category.ComparisonMode == datastore.TournamentTiers {
		toCheck = make([]int, 0, (len(choices)+1)/2)
		for i := 0; i < len(choices); i += 2 {
			toCheck = append(toCheck, choices[i])
		}
	}
	for _, raw := range toCheck {
		if raw < 0 {
			return fmt.Errorf("%w: item %d", ErrItemNotInCategory, raw)
		}
		if _, ok := itemIDs[uint(raw)]; !ok {
			return fmt.Errorf("%w: item %d", ErrItemNotInCategory, raw)
		}
	}

	switch category.ComparisonMode {
	case datastore.SingleChoice:
		if len(choices) != 1 {
			return fmt.Errorf("%w: single choice requires exactly one item", ErrInvalidChoiceShape)
		}

	case datastore.EloTournament:
		if len(choices) != 2 {
			return fmt.Errorf("%w: tournament requires exactly (winner, loser)", ErrInvalidChoiceShape)
		}
		if choices[0] == choices[1] {
			return fmt.Errorf("%w: winner and loser must be different items", ErrInvalidChoiceShape)
		}

	case datastore.RankedList:
		if len(choices) < 2 {
			return fmt.Errorf("%w: ranked list requires at least two items", ErrInvalidChoiceShape)
		}

	case datastore.TournamentTiers:
		if len(choices) < 2 || len(choices)%2 != 0 {
			return fmt.Errorf("%w: tiers require (item, tier) pairs", ErrInvalidChoiceShape)
		}
		settings := category.ParseSettings()
		numTiers := settings.NumTiers()
		for i := 1; i < len(choices); i += 2 {
			if choices[i] < 0 || choices[i] >= numTiers {
				return fmt.Errorf("%w: %d", ErrInvalidTierIndex, choices[i])
			}
		}

	default:
		return fmt.Errorf("%w: unknown comparison mode %q", ErrInvalidChoiceShape, category.ComparisonMode)
	}

	return nil
}

// persistChoices writes one choice row per selection with the mode's rank
// semantics: null rank for single choice and tournaments, 1-based position
// for ranked lists, tier index for tier votes.
func (s *Service) persistChoices(tx datastore.Interface, category *datastore.Category, vote *datastore.Vote, choices []int) error {
	switch category.ComparisonMode {
	case datastore.TournamentTiers:
		for i := 0; i < len(choices); i += 2 {
			tierIndex := choices[i+1]
			choice := &datastore.VoteChoice{
				VoteID: vote.ID,
				ItemID: uint(choices[i]),
				Rank:   &tierIndex,
			}
			if err := tx.CreateVoteChoice(choice); err != nil {
				return err
			}
		}

	case datastore.RankedList:
		for position, itemID := range choices {
			rank := position + 1
			choice := &datastore.VoteChoice{
				VoteID: vote.ID,
				ItemID: uint(itemID),
				Rank:   &rank,
			}
			if err := tx.CreateVoteChoice(choice); err != nil {
				return err
			}
		}

	case datastore.SingleChoice, datastore.EloTournament:
		for _, itemID := range choices {
			choice := &datastore.VoteChoice{
				VoteID: vote.ID,
				ItemID: uint(itemID),
			}
			if err := tx.CreateVoteChoice(choice); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("%w: unknown comparison mode %q", ErrInvalidChoiceShape, category.ComparisonMode)
	}

	return nil
}

// reject records a failed attempt with the oracle and counts the rejection
// before passing the error through.
func (s *Service) reject(ctx context.Context, ipHash, fingerprint string, categoryID uint, err error) error {
	telemetry.VotesRejected.WithLabelValues(rejectReason(err)).Inc()
	s.oracle.RecordAttempt(ctx, ipHash, fingerprint, categoryID, false)
	return err
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrCategoryNotFound):
		return "category_not_found"
	case errors.Is(err, ErrCategoryInactive):
		return "category_inactive"
	case errors.Is(err, ErrDuplicateVote):
		return "duplicate"
	case errors.Is(err, ErrItemNotInCategory):
		return "item_not_in_category"
	case errors.Is(err, ErrInvalidTierIndex):
		return "invalid_tier_index"
	case errors.Is(err, ErrInvalidChoiceShape):
		return "invalid_choice_shape"
	default:
		return "internal"
	}
}
