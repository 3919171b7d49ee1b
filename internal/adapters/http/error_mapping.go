package httpadapter

import (
	"net/http"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDuplicateCode),
		domain.IsKind(err, domain.ErrInvalidTransition),
		domain.IsKind(err, domain.ErrNotEmpty),
		domain.IsKind(err, domain.ErrFieldInUse):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrValidation),
		domain.IsKind(err, domain.ErrUnknownField):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrTemporary),
		domain.IsKind(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Entity string `json:"entity,omitempty"`
	Field  string `json:"field,omitempty"`
}

func newErrorBody(err error) errorBody {
	body := errorBody{Error: err.Error(), Kind: domain.KindName(err)}
	if fe, ok := domain.AsFieldError(err); ok {
		body.Entity = fe.Entity
		body.Field = fe.Field
	}
	return body
}
