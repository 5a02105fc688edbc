package datastore

import (
	"fmt"

	"gorm.io/gorm"
)

// GetCategory retrieves a category by id.
func (ds *DataStore) GetCategory(id uint) (*Category, error) {
	var category Category
	if err := ds.DB.First(&category, id).Error; err != nil {
		return nil, fmt.Errorf("getting category %d: %w", id, err)
	}
	return &category, nil
}

// GetCategories lists categories, optionally restricted to active ones,
// newest first.
func (ds *DataStore) GetCategories(activeOnly bool) ([]Category, error) {
	var categories []Category
	query := ds.DB.Order("created_at DESC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

// GetCategoryByName retrieves a category by its name. Used by the data-file
// sync to find existing categories.
func (ds *DataStore) GetCategoryByName(name string) (*Category, error) {
	var category Category
	if err := ds.DB.Where("name = ?", name).First(&category).Error; err != nil {
		return nil, fmt.Errorf("getting category %q: %w", name, err)
	}
	return &category, nil
}

// SaveCategory inserts or updates a category.
func (ds *DataStore) SaveCategory(category *Category) error {
	if err := ds.DB.Save(category).Error; err != nil {
		return fmt.Errorf("saving category %q: %w", category.Name, err)
	}
	return nil
}

// SetCategoryActive flips a category's active flag.
func (ds *DataStore) SetCategoryActive(id uint, active bool) error {
	result := ds.DB.Model(&Category{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("updating category %d active flag: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("updating category %d active flag: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// GetCategoryItems returns the items configured for a category.
func (ds *DataStore) GetCategoryItems(categoryID uint) ([]Item, error) {
	var items []Item
	err := ds.DB.
		Joins("JOIN category_items ON category_items.item_id = items.id").
		Where("category_items.category_id = ?", categoryID).
		Order("items.id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("getting items for category %d: %w", categoryID, err)
	}
	return items, nil
}

// GetCategoryItemIDs returns the set of item ids votable in a category.
// The admission path uses this for eligibility checking.
func (ds *DataStore) GetCategoryItemIDs(categoryID uint) (map[uint]struct{}, error) {
	var ids []uint
	err := ds.DB.Model(&CategoryItem{}).
		Where("category_id = ?", categoryID).
		Pluck("item_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("getting item ids for category %d: %w", categoryID, err)
	}

	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// EnsureCategoryItem links an item into a category if not already linked.
func (ds *DataStore) EnsureCategoryItem(categoryID, itemID uint) error {
	err := ds.DB.FirstOrCreate(&CategoryItem{}, CategoryItem{
		CategoryID: categoryID,
		ItemID:     itemID,
	}).Error
	if err != nil {
		return fmt.Errorf("linking item %d to category %d: %w", itemID, categoryID, err)
	}
	return nil
}

// ClearCategoryItems removes all item links from a category. The data-file
// sync rebuilds the link set from scratch on every run.
func (ds *DataStore) ClearCategoryItems(categoryID uint) error {
	err := ds.DB.Where("category_id = ?", categoryID).Delete(&CategoryItem{}).Error
	if err != nil {
		return fmt.Errorf("clearing items for category %d: %w", categoryID, err)
	}
	return nil
}

// GetItemGroupByName retrieves an item group by name.
func (ds *DataStore) GetItemGroupByName(name string) (*ItemGroup, error) {
	var group ItemGroup
	if err := ds.DB.Where("name = ?", name).First(&group).Error; err != nil {
		return nil, fmt.Errorf("getting item group %q: %w", name, err)
	}
	return &group, nil
}

// SaveItemGroup inserts or updates an item group.
func (ds *DataStore) SaveItemGroup(group *ItemGroup) error {
	if err := ds.DB.Save(group).Error; err != nil {
		return fmt.Errorf("saving item group %q: %w", group.Name, err)
	}
	return nil
}

// GetItemByName retrieves an item by name.
func (ds *DataStore) GetItemByName(name string) (*Item, error) {
	var item Item
	if err := ds.DB.Where("name = ?", name).First(&item).Error; err != nil {
		return nil, fmt.Errorf("getting item %q: %w", name, err)
	}
	return &item, nil
}

// GetItemInGroup retrieves an item by name within a group.
func (ds *DataStore) GetItemInGroup(groupID uint, name string) (*Item, error) {
	var item Item
	err := ds.DB.Where("group_id = ? AND name = ?", groupID, name).First(&item).Error
	if err != nil {
		return nil, fmt.Errorf("getting item %q in group %d: %w", name, groupID, err)
	}
	return &item, nil
}

// GetItemsByGroup lists all items in a group.
func (ds *DataStore) GetItemsByGroup(groupID uint) ([]Item, error) {
	var items []Item
	if err := ds.DB.Where("group_id = ?", groupID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("listing items in group %d: %w", groupID, err)
	}
	return items, nil
}

// SaveItem inserts or updates an item.
func (ds *DataStore) SaveItem(item *Item) error {
	if err := ds.DB.Save(item).Error; err != nil {
		return fmt.Errorf("saving item %q: %w", item.Name, err)
	}
	return nil
}
