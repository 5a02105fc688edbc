// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/openvote/voteapi/internal/conf"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Interface abstracts the underlying database implementation and defines
// the persistence operations the voting core depends on.
//
// Transaction runs fn against a transactional view of the store. When fn
// returns an error (or panics) every write made inside it is rolled back,
// otherwise the transaction commits. The vote admission path performs all
// of its writes inside a single Transaction call so a submission is
// all-or-nothing.
type Interface interface {
	Open() error
	Close() error
	Transaction(fn func(tx Interface) error) error

	// categories and items
	GetCategory(id uint) (*Category, error)
	GetCategories(activeOnly bool) ([]Category, error)
	GetCategoryByName(name string) (*Category, error)
	SaveCategory(category *Category) error
	SetCategoryActive(id uint, active bool) error
	GetCategoryItems(categoryID uint) ([]Item, error)
	GetCategoryItemIDs(categoryID uint) (map[uint]struct{}, error)
	EnsureCategoryItem(categoryID, itemID uint) error
	ClearCategoryItems(categoryID uint) error
	GetItemGroupByName(name string) (*ItemGroup, error)
	SaveItemGroup(group *ItemGroup) error
	GetItemByName(name string) (*Item, error)
	GetItemInGroup(groupID uint, name string) (*Item, error)
	GetItemsByGroup(groupID uint) ([]Item, error)
	SaveItem(item *Item) error

	// votes
	CreateVote(vote *Vote) error
	GetVote(categoryID uint, fingerprintHash string) (*Vote, error)
	GetVoteByID(id uint) (*Vote, error)
	CountVotes(categoryID uint) (int, error)
	CreateVoteChoice(choice *VoteChoice) error
	GetVoteChoice(voteID, itemID uint) (*VoteChoice, error)
	SaveVoteChoice(choice *VoteChoice) error
	GetChoiceCounts(categoryID uint) (map[uint]int, error)
	GetRankedChoices(categoryID uint) ([]VoteChoice, error)

	// elo ratings
	GetEloRating(categoryID, itemID uint) (*EloRating, error)
	SaveEloRating(rating *EloRating) error
	GetEloRatings(categoryID uint) ([]EloRating, error)

	// comments
	CreateComment(comment *Comment) error
	GetCommentByVoteID(voteID uint) (*Comment, error)
	GetPendingComments() ([]Comment, error)
	GetComment(id uint) (*Comment, error)
	SaveComment(comment *Comment) error
	DeleteComment(id uint) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a new datastore based on the configured database backend.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Database.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Database.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// Transaction runs fn inside a database transaction. gorm rolls back on
// returned error or panic and commits otherwise.
func (ds *DataStore) Transaction(fn func(tx Interface) error) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		return fn(&DataStore{DB: tx})
	})
}

// Open is implemented by the concrete SQLite/MySQL stores; on a bare
// DataStore (e.g. a transactional view) it is not meaningful.
func (ds *DataStore) Open() error {
	if ds.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	return nil
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return fmt.Errorf("getting underlying database handle: %w", err)
	}
	return sqlDB.Close()
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      false,
		},
	)
}

// performAutoMigration runs gorm auto-migration for all voting entities.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&ItemGroup{},
		&Item{},
		&Category{},
		&CategoryItem{},
		&Vote{},
		&VoteChoice{},
		&Comment{},
		&EloRating{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}
	return nil
}
