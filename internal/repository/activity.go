package repository

import (
	"fmt"

	"github.com/iantal/miniapp/internal/config"
	"github.com/iantal/miniapp/internal/domain"
	"github.com/iantal/miniapp/internal/util"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // postgres
	"golang.org/x/xerrors"
)

// ActivityDB defines the operations for storing project activity in the db
type ActivityDB struct {
	log *util.StandardLogger
	db  *gorm.DB
}

// Open connects to the configured postgres database
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	connection := fmt.Sprintf("host=%v port=%v user=%v dbname=%v password=%v sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Name, cfg.Password)

	db, err := gorm.Open("postgres", connection)
	if err != nil {
		return nil, xerrors.Errorf("Failed to connect to database: %w", err)
	}

	if err := db.DB().Ping(); err != nil {
		db.Close()
		return nil, xerrors.Errorf("Ping failed: %w", err)
	}
	return db, nil
}

// NewActivityDB returns an ActivityDB object for handling activity records
func NewActivityDB(log *util.StandardLogger, db *gorm.DB) *ActivityDB {
	db.AutoMigrate(&domain.Activity{})
	return &ActivityDB{
		log: log,
		db:  db,
	}
}

// AddActivity adds an activity record to the db
func (a *ActivityDB) AddActivity(activity *domain.Activity) error {
	if err := a.db.Create(activity).Error; err != nil {
		return xerrors.Errorf("Unable to save activity: %w", err)
	}
	return nil
}

// ActivitiesForProject returns the activity of a project, newest first
func (a *ActivityDB) ActivitiesForProject(projectID string) ([]*domain.Activity, error) {
	activities := []*domain.Activity{}
	err := a.db.Where("project_id = ?", projectID).Order("at desc").Find(&activities).Error
	if err != nil {
		a.log.WithField("projectID", projectID).WithField("error", err).Error("Unable to load activity")
		return nil, xerrors.Errorf("Unable to load activity: %w", err)
	}
	return activities, nil
}

// DeleteForProject removes the activity of a deleted project
func (a *ActivityDB) DeleteForProject(projectID string) error {
	if err := a.db.Where("project_id = ?", projectID).Delete(&domain.Activity{}).Error; err != nil {
		return xerrors.Errorf("Unable to delete activity: %w", err)
	}
	return nil
}
