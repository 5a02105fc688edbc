// Package datasync populates categories, items and item groups from
// declarative YAML definition files. The voting core never creates these
// entities itself; this importer is the only writer.
//
// Layout under the data directory:
//
//	item_groups/*.yaml  one item group per file, with its items
//	categories/*.yaml   one category per file, referencing a group or
//	                    naming items explicitly
package datasync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openvote/voteapi/internal/datastore"
	"github.com/openvote/voteapi/internal/logging"
	"gopkg.in/yaml.v3"
)

// Summary reports what a sync run changed. Per-file failures are collected
// rather than aborting the run, so one malformed file cannot block the
// rest.
type Summary struct {
	ItemGroupsCreated int      `json:"item_groups_created"`
	ItemGroupsUpdated int      `json:"item_groups_updated"`
	ItemsCreated      int      `json:"items_created"`
	ItemsUpdated      int      `json:"items_updated"`
	CategoriesCreated int      `json:"categories_created"`
	CategoriesUpdated int      `json:"categories_updated"`
	Errors            []string `json:"errors,omitempty"`
}

// Service synchronizes definition files into the datastore.
type Service struct {
	store   datastore.Interface
	dataDir string
	logger  *slog.Logger
}

// New returns a sync service reading definitions from dataDir.
func New(store datastore.Interface, dataDir string) *Service {
	return &Service{
		store:   store,
		dataDir: dataDir,
		logger:  logging.ForService("datasync"),
	}
}

type itemDefinition struct {
	Name     string            `yaml:"name"`
	ImageURL string            `yaml:"image_url"`
	Metadata map[string]string `yaml:"metadata"`
}

type itemGroupDefinition struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	IconURL     string           `yaml:"icon_url"`
	Items       []itemDefinition `yaml:"items"`
}

type categoryDefinition struct {
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	ComparisonMode string `yaml:"comparison_mode"`
	IsActive       *bool  `yaml:"is_active"`
	Settings       struct {
		TierOptions    []string `yaml:"tier_options"`
		PrivateResults bool     `yaml:"private_results"`
	} `yaml:"settings"`
	ItemGroup string   `yaml:"item_group"`
	Items     []string `yaml:"items"`
	Filter    struct {
		Metadata map[string]any `yaml:"metadata"`
	} `yaml:"filter"`
}

// SyncAll imports every definition file. Item groups go first since
// categories reference them by name.
func (s *Service) SyncAll() (*Summary, error) {
	summary := &Summary{}

	groupFiles, err := filepath.Glob(filepath.Join(s.dataDir, "item_groups", "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scanning item group files: %w", err)
	}
	for _, file := range groupFiles {
		if err := s.syncItemGroup(file, summary); err != nil {
			s.logger.Error("item group sync failed", "file", file, "error", err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", filepath.Base(file), err))
		}
	}

	categoryFiles, err := filepath.Glob(filepath.Join(s.dataDir, "categories", "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scanning category files: %w", err)
	}
	for _, file := range categoryFiles {
		if err := s.syncCategory(file, summary); err != nil {
			s.logger.Error("category sync failed", "file", file, "error", err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", filepath.Base(file), err))
		}
	}

	s.logger.Info("data sync complete",
		"item_groups_created", summary.ItemGroupsCreated,
		"item_groups_updated", summary.ItemGroupsUpdated,
		"items_created", summary.ItemsCreated,
		"items_updated", summary.ItemsUpdated,
		"categories_created", summary.CategoriesCreated,
		"categories_updated", summary.CategoriesUpdated,
		"errors", len(summary.Errors))

	return summary, nil
}

func (s *Service) syncItemGroup(file string, summary *Summary) error {
	var def itemGroupDefinition
	if err := readDefinition(file, &def); err != nil {
		return err
	}
	if def.Name == "" {
		return fmt.Errorf("item group definition has no name")
	}

	// Counters are staged and applied only after the transaction commits,
	// a rolled-back file must not show up in the summary.
	staged := Summary{}
	err := s.store.Transaction(func(tx datastore.Interface) error {
		group, err := tx.GetItemGroupByName(def.Name)
		switch {
		case err == nil:
			group.Description = def.Description
			group.IconURL = def.IconURL
			if err := tx.SaveItemGroup(group); err != nil {
				return err
			}
			staged.ItemGroupsUpdated++
		case datastore.IsNotFound(err):
			group = &datastore.ItemGroup{
				Name:        def.Name,
				Description: def.Description,
				IconURL:     def.IconURL,
			}
			if err := tx.SaveItemGroup(group); err != nil {
				return err
			}
			staged.ItemGroupsCreated++
		default:
			return err
		}

		for _, itemDef := range def.Items {
			if err := s.syncItem(tx, group.ID, &itemDef, &staged); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	summary.ItemGroupsCreated += staged.ItemGroupsCreated
	summary.ItemGroupsUpdated += staged.ItemGroupsUpdated
	summary.ItemsCreated += staged.ItemsCreated
	summary.ItemsUpdated += staged.ItemsUpdated
	return nil
}

func (s *Service) syncItem(tx datastore.Interface, groupID uint, def *itemDefinition, summary *Summary) error {
	metadata := ""
	if len(def.Metadata) > 0 {
		encoded, err := json.Marshal(def.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for item %q: %w", def.Name, err)
		}
		metadata = string(encoded)
	}

	item, err := tx.GetItemInGroup(groupID, def.Name)
	switch {
	case err == nil:
		item.ImageURL = def.ImageURL
		item.Metadata = metadata
		if err := tx.SaveItem(item); err != nil {
			return err
		}
		summary.ItemsUpdated++
	case datastore.IsNotFound(err):
		item = &datastore.Item{
			GroupID:  &groupID,
			Name:     def.Name,
			ImageURL: def.ImageURL,
			Metadata: metadata,
		}
		if err := tx.SaveItem(item); err != nil {
			return err
		}
		summary.ItemsCreated++
	default:
		return err
	}
	return nil
}

func (s *Service) syncCategory(file string, summary *Summary) error {
	var def categoryDefinition
	if err := readDefinition(file, &def); err != nil {
		return err
	}
	if def.Name == "" {
		return fmt.Errorf("category definition has no name")
	}

	mode := datastore.ComparisonMode(def.ComparisonMode)
	if def.ComparisonMode == "" {
		mode = datastore.SingleChoice
	}
	if !mode.Valid() {
		return fmt.Errorf("invalid comparison_mode %q", def.ComparisonMode)
	}

	settings := ""
	if len(def.Settings.TierOptions) > 0 || def.Settings.PrivateResults {
		encoded, err := json.Marshal(datastore.CategorySettings{
			TierOptions:    def.Settings.TierOptions,
			PrivateResults: def.Settings.PrivateResults,
		})
		if err != nil {
			return fmt.Errorf("encoding settings: %w", err)
		}
		settings = string(encoded)
	}

	isActive := true
	if def.IsActive != nil {
		isActive = *def.IsActive
	}

	created := false
	err := s.store.Transaction(func(tx datastore.Interface) error {
		category, err := tx.GetCategoryByName(def.Name)
		switch {
		case err == nil:
			category.Description = def.Description
			category.ComparisonMode = mode
			category.IsActive = isActive
			category.Settings = settings
			if err := tx.SaveCategory(category); err != nil {
				return err
			}
		case datastore.IsNotFound(err):
			category = &datastore.Category{
				Name:           def.Name,
				Description:    def.Description,
				ComparisonMode: mode,
				IsActive:       isActive,
				Settings:       settings,
			}
			if err := tx.SaveCategory(category); err != nil {
				return err
			}
			created = true
		default:
			return err
		}

		return s.syncCategoryItems(tx, category, &def)
	})
	if err != nil {
		return err
	}

	if created {
		summary.CategoriesCreated++
	} else {
		summary.CategoriesUpdated++
	}
	return nil
}

// syncCategoryItems rebuilds a category's item links from the definition:
// either every item of a referenced group (optionally filtered on
// metadata) or an explicit item name list.
func (s *Service) syncCategoryItems(tx datastore.Interface, category *datastore.Category, def *categoryDefinition) error {
	var itemIDs []uint

	switch {
	case def.ItemGroup != "":
		group, err := tx.GetItemGroupByName(def.ItemGroup)
		if err != nil {
			if datastore.IsNotFound(err) {
				return fmt.Errorf("item group %q not found", def.ItemGroup)
			}
			return err
		}

		items, err := tx.GetItemsByGroup(group.ID)
		if err != nil {
			return err
		}
		for i := range items {
			if matchesMetadataFilter(&items[i], def.Filter.Metadata) {
				itemIDs = append(itemIDs, items[i].ID)
			}
		}

	case len(def.Items) > 0:
		for _, name := range def.Items {
			item, err := tx.GetItemByName(name)
			if err != nil {
				if datastore.IsNotFound(err) {
					s.logger.Warn("category references unknown item",
						"category", category.Name, "item", name)
					continue
				}
				return err
			}
			itemIDs = append(itemIDs, item.ID)
		}
	}

	if err := tx.ClearCategoryItems(category.ID); err != nil {
		return err
	}
	for _, itemID := range itemIDs {
		if err := tx.EnsureCategoryItem(category.ID, itemID); err != nil {
			return err
		}
	}
	return nil
}

// matchesMetadataFilter checks an item's metadata against a filter mapping
// of key to either a single allowed value or a list of allowed values.
func matchesMetadataFilter(item *datastore.Item, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}

	metadata := item.ParseMetadata()
	for key, allowed := range filter {
		value := metadata[key]
		switch allowed := allowed.(type) {
		case []any:
			found := false
			for _, candidate := range allowed {
				if fmt.Sprint(candidate) == value {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if fmt.Sprint(allowed) != value {
				return false
			}
		}
	}
	return true
}

func readDefinition(file string, out any) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", file, err)
	}
	return nil
}
