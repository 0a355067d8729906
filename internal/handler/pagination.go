package handler

import (
	"net/http"
	"strconv"

	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset. Out-of-range limits fall back to
// the default; non-numeric values are rejected.
func ParsePagination(r *http.Request) (PaginationParams, error) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		return PaginationParams{}, err
	}
	offset, err := queryInt(q.Get("offset"), "offset")
	if err != nil {
		return PaginationParams{}, err
	}

	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}, nil
}

func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidInput(name, "must be an integer")
	}
	return n, nil
}
