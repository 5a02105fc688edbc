package datastore

import "fmt"

// CreateVote inserts a new vote row. The unique index on
// (category_id, fingerprint_hash) makes the insert fail for a voter who
// has already voted in the category; callers detect that with
// IsUniqueConstraintViolation.
func (ds *DataStore) CreateVote(vote *Vote) error {
	if err := ds.DB.Create(vote).Error; err != nil {
		return fmt.Errorf("creating vote for category %d: %w", vote.CategoryID, err)
	}
	return nil
}

// GetVote retrieves a voter's vote in a category by fingerprint.
func (ds *DataStore) GetVote(categoryID uint, fingerprintHash string) (*Vote, error) {
	var vote Vote
	err := ds.DB.
		Where("category_id = ? AND fingerprint_hash = ?", categoryID, fingerprintHash).
		First(&vote).Error
	if err != nil {
		return nil, fmt.Errorf("getting vote for category %d: %w", categoryID, err)
	}
	return &vote, nil
}

// GetVoteByID retrieves a vote by its id.
func (ds *DataStore) GetVoteByID(id uint) (*Vote, error) {
	var vote Vote
	if err := ds.DB.First(&vote, id).Error; err != nil {
		return nil, fmt.Errorf("getting vote %d: %w", id, err)
	}
	return &vote, nil
}

// CountVotes returns the number of votes recorded for a category.
func (ds *DataStore) CountVotes(categoryID uint) (int, error) {
	var count int64
	err := ds.DB.Model(&Vote{}).
		Where("category_id = ?", categoryID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting votes for category %d: %w", categoryID, err)
	}
	return int(count), nil
}

// CreateVoteChoice inserts a choice row. The unique index on
// (vote_id, item_id) keeps an item from appearing twice within one vote.
func (ds *DataStore) CreateVoteChoice(choice *VoteChoice) error {
	if err := ds.DB.Create(choice).Error; err != nil {
		return fmt.Errorf("creating choice for vote %d item %d: %w", choice.VoteID, choice.ItemID, err)
	}
	return nil
}

// GetVoteChoice retrieves the choice for one item within a vote.
func (ds *DataStore) GetVoteChoice(voteID, itemID uint) (*VoteChoice, error) {
	var choice VoteChoice
	err := ds.DB.
		Where("vote_id = ? AND item_id = ?", voteID, itemID).
		First(&choice).Error
	if err != nil {
		return nil, fmt.Errorf("getting choice for vote %d item %d: %w", voteID, itemID, err)
	}
	return &choice, nil
}

// SaveVoteChoice updates an existing choice, used by the tiered upsert path
// to move an item between tiers.
func (ds *DataStore) SaveVoteChoice(choice *VoteChoice) error {
	if err := ds.DB.Save(choice).Error; err != nil {
		return fmt.Errorf("saving choice %d: %w", choice.ID, err)
	}
	return nil
}

// GetChoiceCounts returns, per item, the number of choice rows recorded in
// a category. Single-choice aggregation is built on this.
func (ds *DataStore) GetChoiceCounts(categoryID uint) (map[uint]int, error) {
	type row struct {
		ItemID uint
		Count  int
	}
	var rows []row
	err := ds.DB.Model(&VoteChoice{}).
		Select("vote_choices.item_id AS item_id, COUNT(vote_choices.id) AS count").
		Joins("JOIN votes ON votes.id = vote_choices.vote_id").
		Where("votes.category_id = ?", categoryID).
		Group("vote_choices.item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting choices for category %d: %w", categoryID, err)
	}

	counts := make(map[uint]int, len(rows))
	for _, r := range rows {
		counts[r.ItemID] = r.Count
	}
	return counts, nil
}

// GetRankedChoices returns all choices in a category that carry a rank
// value. Both ranked-list and tier aggregation read from this.
func (ds *DataStore) GetRankedChoices(categoryID uint) ([]VoteChoice, error) {
	var choices []VoteChoice
	err := ds.DB.Model(&VoteChoice{}).
		Joins("JOIN votes ON votes.id = vote_choices.vote_id").
		Where("votes.category_id = ? AND vote_choices.rank IS NOT NULL", categoryID).
		Find(&choices).Error
	if err != nil {
		return nil, fmt.Errorf("getting ranked choices for category %d: %w", categoryID, err)
	}
	return choices, nil
}
