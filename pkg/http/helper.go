package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	apperrors "rentcore/pkg/errors"
)

const (
	DefaultPaginationLimit = 20
	MaxPaginationLimit     = 100
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	return NormalizePaginationLimit(limit), max(0, offset), nil
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		return DefaultPaginationLimit
	}
	return min(limit, MaxPaginationLimit)
}

// ParseTimeParam parses an RFC 3339 query parameter. Missing parameters yield the zero time.
func ParseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("invalid " + name + " format, must be RFC3339")
	}
	return t.UTC(), nil
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.InvalidInput("Invalid request body")
	}
	return nil
}
