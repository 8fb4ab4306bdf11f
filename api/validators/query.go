package validators

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/pagination"
)

// UUIDParam parses a chi URL parameter as a UUID.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, name+" must be a valid UUID")
	}
	return id, nil
}

// PaginationParams reads limit and cursor from the query string.
func PaginationParams(r *http.Request) (pagination.Params, error) {
	params := pagination.Params{}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "limit must be an integer")
		}
		params.Limit = limit
	}
	params.Limit = pagination.NormalizeLimit(params.Limit)
	params.Cursor = r.URL.Query().Get("cursor")

	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return params, nil
}
