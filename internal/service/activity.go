package service

import (
	"github.com/iantal/miniapp/internal/domain"
)

// ActivityRecorder keeps the log of imports and publishes
type ActivityRecorder interface {
	AddActivity(a *domain.Activity) error
	ActivitiesForProject(projectID string) ([]*domain.Activity, error)
	DeleteForProject(projectID string) error
}

// NoActivity is used when no database is configured
type NoActivity struct{}

func (NoActivity) AddActivity(*domain.Activity) error { return nil }

func (NoActivity) ActivitiesForProject(string) ([]*domain.Activity, error) {
	return []*domain.Activity{}, nil
}

func (NoActivity) DeleteForProject(string) error { return nil }
