package jsonapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/EmpoweredVote/EV-Profiles/internal/apperrors"
	"github.com/EmpoweredVote/EV-Profiles/internal/validation"
)

// WriteErrorStatus writes a single error object.
func WriteErrorStatus(w http.ResponseWriter, status int, title, detail string) error {
	return Write(w, status, Document{Errors: []ErrorObject{{
		Status: strconv.Itoa(status),
		Title:  title,
		Detail: detail,
	}}})
}

// WriteValidationErrors renders every collected failure as its own error
// object pointing at the offending field.
func (s Schema) WriteValidationErrors(w http.ResponseWriter, errs validation.Errors) error {
	objs := make([]ErrorObject, 0, len(errs))
	for _, fe := range errs {
		objs = append(objs, ErrorObject{
			Status: strconv.Itoa(http.StatusUnprocessableEntity),
			Code:   string(fe.Code),
			Title:  "Invalid " + fe.Field,
			Detail: fe.Field + " " + fe.Message,
			Source: &ErrorSource{Pointer: s.Pointer(fe.Field)},
		})
	}
	return Write(w, http.StatusUnprocessableEntity, Document{Errors: objs})
}

// StatusFor maps an error returned by a service to its HTTP status.
func StatusFor(err error) int {
	var verrs validation.Errors
	var notAllowed *NotAllowedError
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notAllowed), errors.Is(err, ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, ErrTypeMismatch), errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteErr renders err with the status StatusFor picks and returns that status.
func (s Schema) WriteErr(w http.ResponseWriter, err error) int {
	status := StatusFor(err)

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		_ = s.WriteValidationErrors(w, verrs)
		return status
	}

	var notAllowed *NotAllowedError
	if errors.As(err, &notAllowed) {
		_ = Write(w, status, Document{Errors: []ErrorObject{{
			Status: strconv.Itoa(status),
			Code:   "param_not_allowed",
			Title:  "Param not allowed",
			Detail: notAllowed.Error(),
			Source: &ErrorSource{Pointer: s.Pointer(notAllowed.Field)},
		}}})
		return status
	}

	detail := err.Error()
	if status >= http.StatusInternalServerError {
		detail = http.StatusText(status)
	}
	_ = WriteErrorStatus(w, status, http.StatusText(status), detail)
	return status
}
