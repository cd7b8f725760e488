package domain

import (
	"time"
)

// TimeLayout is the fixed-width UTC layout used for metadata timestamps.
// Lexicographic order of values in this layout equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Metadata is the side-car record kept next to the project files
type Metadata struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Project defines a project directory together with its metadata
type Project struct {
	Metadata
}

// NewProject creates an instance of Project
func NewProject(id, name string, created time.Time) *Project {
	ts := FormatTime(created)
	return &Project{
		Metadata: Metadata{
			ID:        id,
			Name:      name,
			CreatedAt: ts,
			UpdatedAt: ts,
		},
	}
}

// FormatTime renders t in TimeLayout
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ProjectRef is the short form of a project returned next to listings
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Ref returns the short form of the metadata
func (m Metadata) Ref() ProjectRef {
	return ProjectRef{ID: m.ID, Name: m.Name}
}
