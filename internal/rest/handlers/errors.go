package handlers

import (
	"net/http"

	"github.com/iantal/miniapp/internal/domain"
	"github.com/iantal/miniapp/internal/util"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// GenericError represents an error of the system
type GenericError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		nf  *domain.ErrNotFound
		ip  *domain.ErrInvalidPath
		ii  *domain.ErrInvalidInput
		ut  *domain.ErrUnsupportedType
		mi  *domain.ErrMissingInput
		ce  *domain.ErrConfiguration
		ptl *domain.ErrPayloadTooLarge
		pe  *domain.ErrProvider
	)
	switch {
	case xerrors.As(err, &nf):
		return http.StatusNotFound
	case xerrors.As(err, &ip), xerrors.As(err, &ii), xerrors.As(err, &ut), xerrors.As(err, &mi):
		return http.StatusBadRequest
	case xerrors.As(err, &ptl):
		return http.StatusRequestEntityTooLarge
	case xerrors.As(err, &ce):
		return http.StatusInternalServerError
	case xerrors.As(err, &pe):
		if pe.Status >= 400 && pe.Status < 600 {
			return pe.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (p *Projects) writeError(rw http.ResponseWriter, err error, fields logrus.Fields) {
	status := HTTPStatus(err)
	entry := p.l.WithFields(fields).WithField("error", err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Info("Request rejected")
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	util.ToJSON(&GenericError{Code: domain.Code(err), Message: err.Error()}, rw)
}

func writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	util.ToJSON(v, rw)
}
