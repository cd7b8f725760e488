package handlers

import (
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/iantal/miniapp/internal/domain"
	"github.com/iantal/miniapp/internal/service"
	"github.com/iantal/miniapp/internal/util"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Projects is a handler for the project store and its GitHub integrations
type Projects struct {
	l         *util.StandardLogger
	projects  *service.ProjectManager
	exporter  *service.Exporter
	importer  *service.Importer
	publisher *service.Publisher
	activity  service.ActivityRecorder
	validate  *validator.Validate
}

// NewProjects creates a handler for projects
func NewProjects(log *util.StandardLogger, projects *service.ProjectManager, exporter *service.Exporter, importer *service.Importer, publisher *service.Publisher, activity service.ActivityRecorder) *Projects {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	return &Projects{
		l:         log,
		projects:  projects,
		exporter:  exporter,
		importer:  importer,
		publisher: publisher,
		activity:  activity,
		validate:  v,
	}
}

// CreateProjectRequest is the body of a project creation
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// OK is the body of successful mutations without a payload
type OK struct {
	OK bool `json:"ok"`
}

// decode reads an optional JSON body into v; an empty body leaves v untouched
func (p *Projects) decode(r *http.Request, v interface{}) error {
	err := util.FromJSON(v, r.Body)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return &domain.ErrInvalidInput{Field: "body", Message: "malformed JSON: " + err.Error()}
	}
	return nil
}

// check runs the struct validation tags of v
func (p *Projects) check(v interface{}) error {
	err := p.validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if xerrors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		msg := "failed " + fe.Tag() + " check"
		if fe.Tag() == "required" {
			msg = "is required"
		}
		return &domain.ErrInvalidInput{Field: fe.Field(), Message: msg}
	}
	return &domain.ErrInvalidInput{Field: "body", Message: err.Error()}
}

// List returns every project, most recently updated first
func (p *Projects) List(rw http.ResponseWriter, r *http.Request) {
	projects, err := p.projects.List()
	if err != nil {
		p.writeError(rw, err, logrus.Fields{"op": "list"})
		return
	}
	writeJSON(rw, http.StatusOK, projects)
}

// Create makes a new project from the scaffold
func (p *Projects) Create(rw http.ResponseWriter, r *http.Request) {
	req := &CreateProjectRequest{}
	if err := p.decode(r, req); err != nil {
		p.writeError(rw, err, logrus.Fields{"op": "create"})
		return
	}

	project, err := p.projects.Create(req.Name)
	if err != nil {
		p.writeError(rw, err, logrus.Fields{"op": "create"})
		return
	}
	writeJSON(rw, http.StatusOK, project.Ref())
}

// Delete removes a project and everything in it
func (p *Projects) Delete(rw http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	if err := p.projects.Delete(projectID); err != nil {
		p.writeError(rw, err, logrus.Fields{"op": "delete", "projectID": projectID})
		return
	}
	if err := p.activity.DeleteForProject(projectID); err != nil {
		p.l.ForProject(projectID).WithField("error", err).Warn("Unable to delete project activity")
	}
	writeJSON(rw, http.StatusOK, &OK{OK: true})
}

// Activity returns the import and publish history of a project
func (p *Projects) Activity(rw http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	if _, err := p.projects.Get(projectID); err != nil {
		p.writeError(rw, err, logrus.Fields{"op": "activity", "projectID": projectID})
		return
	}

	activities, err := p.activity.ActivitiesForProject(projectID)
	if err != nil {
		p.writeError(rw, err, logrus.Fields{"op": "activity", "projectID": projectID})
		return
	}
	writeJSON(rw, http.StatusOK, activities)
}

// Export sends the project as a zip attachment
func (p *Projects) Export(rw http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	fp, err := p.exporter.ExportFile(projectID)
	if err != nil {
		p.writeError(rw, err, logrus.Fields{"op": "export", "projectID": projectID})
		return
	}

	rw.Header().Set("Content-type", "application/zip")
	rw.Header().Set("Content-Disposition", "attachment; filename=\""+projectID+".zip\"")
	http.ServeFile(rw, r, fp)
}
