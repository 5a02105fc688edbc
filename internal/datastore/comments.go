package datastore

import "fmt"

// CreateComment inserts a comment. The unique index on vote_id enforces at
// most one comment per vote.
func (ds *DataStore) CreateComment(comment *Comment) error {
	if err := ds.DB.Create(comment).Error; err != nil {
		return fmt.Errorf("creating comment for vote %d: %w", comment.VoteID, err)
	}
	return nil
}

// GetCommentByVoteID retrieves the comment attached to a vote.
func (ds *DataStore) GetCommentByVoteID(voteID uint) (*Comment, error) {
	var comment Comment
	if err := ds.DB.Where("vote_id = ?", voteID).First(&comment).Error; err != nil {
		return nil, fmt.Errorf("getting comment for vote %d: %w", voteID, err)
	}
	return &comment, nil
}

// GetPendingComments lists unapproved comments, newest first.
func (ds *DataStore) GetPendingComments() ([]Comment, error) {
	var comments []Comment
	err := ds.DB.
		Where("is_approved = ?", false).
		Order("created_at DESC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("listing pending comments: %w", err)
	}
	return comments, nil
}

// GetComment retrieves a comment by id.
func (ds *DataStore) GetComment(id uint) (*Comment, error) {
	var comment Comment
	if err := ds.DB.First(&comment, id).Error; err != nil {
		return nil, fmt.Errorf("getting comment %d: %w", id, err)
	}
	return &comment, nil
}

// SaveComment updates a comment, used by moderation to approve it.
func (ds *DataStore) SaveComment(comment *Comment) error {
	if err := ds.DB.Save(comment).Error; err != nil {
		return fmt.Errorf("saving comment %d: %w", comment.ID, err)
	}
	return nil
}

// DeleteComment removes a comment, used by moderation to reject it.
func (ds *DataStore) DeleteComment(id uint) error {
	if err := ds.DB.Delete(&Comment{}, id).Error; err != nil {
		return fmt.Errorf("deleting comment %d: %w", id, err)
	}
	return nil
}
