package transport

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// actor is the authenticated caller extracted from the request context.
type actor struct {
	ID   uuid.UUID
	Role string
}

// requestActor resolves the caller set by the auth middleware.
func requestActor(r *http.Request) (actor, error) {
	idStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		return actor{}, fmt.Errorf("user not found in context")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return actor{}, fmt.Errorf("invalid user ID in context: %w", err)
	}

	role, ok := middleware.GetUserRole(r.Context())
	if !ok {
		return actor{}, fmt.Errorf("role not found in context")
	}

	return actor{ID: id, Role: role}, nil
}

// pathUUID parses a UUID URL parameter.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

// pagination reads page/page_size query parameters with sane bounds.
func pagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = defaultPageSize

	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && v > 0 {
		pageSize = v
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
	}

	return page, pageSize
}

// PagedResponse wraps list payloads with pagination metadata.
type PagedResponse struct {
	Items    any `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}
