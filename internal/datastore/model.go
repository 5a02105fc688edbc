// model.go this code defines the data model for the voting system
package datastore

import (
	"encoding/json"
	"time"
)

// ComparisonMode is the voting format of a category. It is stored as a
// string column but handled as a closed enumeration: every dispatch on it
// is an exhaustive switch over the four known modes.
type ComparisonMode string

const (
	SingleChoice    ComparisonMode = "single_choice"
	EloTournament   ComparisonMode = "elo_tournament"
	RankedList      ComparisonMode = "ranked_list"
	TournamentTiers ComparisonMode = "tournament_tiers"
)

// Valid reports whether the mode is one of the known comparison modes.
func (m ComparisonMode) Valid() bool {
	switch m {
	case SingleChoice, EloTournament, RankedList, TournamentTiers:
		return true
	}
	return false
}

// DefaultTierOptions is the tier label list used by tournament_tiers
// categories that do not configure their own. The last label is the
// "don't know" sentinel excluded from tier averages.
var DefaultTierOptions = []string{"X", "S+", "S", "A", "B", "C", "D"}

// CategorySettings is the typed form of a category's free-form settings
// column, parsed once at category load.
type CategorySettings struct {
	TierOptions    []string `json:"tier_options,omitempty"`
	PrivateResults bool     `json:"private_results,omitempty"`
}

// NumTiers returns the number of configured tiers, falling back to the
// default tier list when none are configured.
func (s *CategorySettings) NumTiers() int {
	if len(s.TierOptions) == 0 {
		return len(DefaultTierOptions)
	}
	return len(s.TierOptions)
}

// Tiers returns the configured tier labels, or the default list.
func (s *CategorySettings) Tiers() []string {
	if len(s.TierOptions) == 0 {
		return DefaultTierOptions
	}
	return s.TierOptions
}

// ItemGroup groups related items, e.g. weapons or maps.
type ItemGroup struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	IconURL     string
	Items       []Item `gorm:"foreignKey:GroupID"`
}

// Item is a single votable thing. Metadata is a free-form JSON mapping used
// for display names and group filtering.
type Item struct {
	ID       uint  `gorm:"primaryKey"`
	GroupID  *uint `gorm:"index"` // nullable, items may be ungrouped
	Name     string
	ImageURL string
	Metadata string `gorm:"type:text"` // JSON object, see ParseMetadata
}

// ParseMetadata decodes the item's metadata column. An empty or malformed
// column yields an empty map rather than an error, metadata is advisory.
func (i *Item) ParseMetadata() map[string]string {
	meta := map[string]string{}
	if i.Metadata == "" {
		return meta
	}
	if err := json.Unmarshal([]byte(i.Metadata), &meta); err != nil {
		return map[string]string{}
	}
	return meta
}

// DisplayName returns the metadata display_name when present, else the
// item name.
func (i *Item) DisplayName() string {
	if name := i.ParseMetadata()["display_name"]; name != "" {
		return name
	}
	return i.Name
}

// Category is a voting poll with a comparison mode and a configured item
// set. Settings is a JSON column, see ParseSettings.
type Category struct {
	ID             uint `gorm:"primaryKey"`
	Name           string
	Description    string         `gorm:"type:text"`
	ComparisonMode ComparisonMode `gorm:"type:varchar(50);not null"`
	IsActive       bool           `gorm:"not null;default:true"`
	Settings       string         `gorm:"type:text"`
	CreatedAt      time.Time

	CategoryItems []CategoryItem `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
}

// ParseSettings decodes the category's settings column into its typed form.
// Missing or malformed settings decode to the zero value, whose accessors
// apply defaults.
func (c *Category) ParseSettings() CategorySettings {
	var settings CategorySettings
	if c.Settings == "" {
		return settings
	}
	if err := json.Unmarshal([]byte(c.Settings), &settings); err != nil {
		return CategorySettings{}
	}
	return settings
}

// CategoryItem links an item into a category's votable set. The composite
// primary key doubles as the uniqueness constraint.
type CategoryItem struct {
	CategoryID uint `gorm:"primaryKey;autoIncrement:false"`
	ItemID     uint `gorm:"primaryKey;autoIncrement:false"`
	Item       Item `gorm:"foreignKey:ItemID"`
}

// Vote is one voter's submission to one category. The unique index on
// (category_id, fingerprint_hash) is what enforces one-vote-per-voter; the
// admission path relies on the insert failing rather than on a lookup.
type Vote struct {
	ID              uint   `gorm:"primaryKey"`
	CategoryID      uint   `gorm:"not null;uniqueIndex:idx_vote_category_fingerprint"`
	FingerprintHash string `gorm:"type:varchar(64);not null;uniqueIndex:idx_vote_category_fingerprint"`
	IPHash          string `gorm:"type:varchar(64);not null;index"`
	CreatedAt       time.Time

	Choices []VoteChoice `gorm:"foreignKey:VoteID;constraint:OnDelete:CASCADE"`
	Comment *Comment     `gorm:"foreignKey:VoteID;constraint:OnDelete:CASCADE"`
}

// VoteChoice is one selected item within a vote. Rank is dual-purpose: the
// 1-based preference position in ranked_list mode and the tier index in
// tournament_tiers mode; null in single_choice and elo_tournament modes.
type VoteChoice struct {
	ID     uint `gorm:"primaryKey"`
	VoteID uint `gorm:"not null;uniqueIndex:idx_choice_vote_item"`
	ItemID uint `gorm:"not null;uniqueIndex:idx_choice_vote_item"`
	Rank   *int
}

// Comment is optional free text attached 1:1 to a vote. Comments start
// unapproved and are moderated through the admin endpoints.
type Comment struct {
	ID         uint   `gorm:"primaryKey"`
	VoteID     uint   `gorm:"uniqueIndex;not null"`
	Content    string `gorm:"type:text;not null"`
	IsApproved bool   `gorm:"not null;default:false"`
	CreatedAt  time.Time
}

// EloRating is the mutable per (category, item) rating aggregate. Created
// lazily on an item's first match, mutated on every subsequent match,
// never recomputed from history.
type EloRating struct {
	ID          uint    `gorm:"primaryKey"`
	CategoryID  uint    `gorm:"not null;uniqueIndex:idx_elo_category_item"`
	ItemID      uint    `gorm:"not null;uniqueIndex:idx_elo_category_item"`
	Rating      float64 `gorm:"not null;default:1500"`
	GamesPlayed int     `gorm:"not null;default:0"`
	UpdatedAt   time.Time
}
