package domain

import (
	"time"

	"github.com/jinzhu/gorm"
)

// Activity kinds
const (
	ActivityImport  = "import"
	ActivityPublish = "publish"
)

// Activity records an outbound integration performed on a project
type Activity struct {
	gorm.Model `json:"-"`
	ProjectID  string    `gorm:"index;size:12" json:"project_id"`
	Kind       string    `gorm:"size:16" json:"kind"`
	Repo       string    `json:"repo"`
	URL        string    `json:"url"`
	At         time.Time `json:"created_at"`
}

// NewActivity creates an instance of Activity
func NewActivity(projectID, kind, repo, url string, at time.Time) *Activity {
	return &Activity{
		ProjectID: projectID,
		Kind:      kind,
		Repo:      repo,
		URL:       url,
		At:        at.UTC(),
	}
}
