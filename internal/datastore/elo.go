package datastore

import "fmt"

// GetEloRating retrieves the rating row for one (category, item) pair.
func (ds *DataStore) GetEloRating(categoryID, itemID uint) (*EloRating, error) {
	var rating EloRating
	err := ds.DB.
		Where("category_id = ? AND item_id = ?", categoryID, itemID).
		First(&rating).Error
	if err != nil {
		return nil, fmt.Errorf("getting elo rating for category %d item %d: %w", categoryID, itemID, err)
	}
	return &rating, nil
}

// SaveEloRating inserts or updates a rating row.
func (ds *DataStore) SaveEloRating(rating *EloRating) error {
	if err := ds.DB.Save(rating).Error; err != nil {
		return fmt.Errorf("saving elo rating for category %d item %d: %w", rating.CategoryID, rating.ItemID, err)
	}
	return nil
}

// GetEloRatings returns all rating rows for a category, highest first.
func (ds *DataStore) GetEloRatings(categoryID uint) ([]EloRating, error) {
	var ratings []EloRating
	err := ds.DB.
		Where("category_id = ?", categoryID).
		Order("rating DESC").
		Find(&ratings).Error
	if err != nil {
		return nil, fmt.Errorf("getting elo ratings for category %d: %w", categoryID, err)
	}
	return ratings, nil
}
