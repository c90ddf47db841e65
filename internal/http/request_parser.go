package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"
)

// maxUserIDLength bounds the {id} path segment.
const maxUserIDLength = 128

// errBadRequest marks malformed query input.
var errBadRequest = errors.New("bad request")

// QueryParams holds the parsed inputs common to every user route.
type QueryParams struct {
	UserID   string
	AsOf     time.Time
	Strategy string
}

// ParseQueryParams reads the user ID from the path and as_of and strategy
// from the query string. A missing as_of defaults to now.
func ParseQueryParams(r *http.Request, now time.Time) (QueryParams, error) {
	var p QueryParams

	id, err := ParseUserID(r.PathValue("id"))
	if err != nil {
		return p, err
	}
	p.UserID = id

	asOf, err := ParseAsOf(r.URL.Query().Get("as_of"), now)
	if err != nil {
		return p, err
	}
	p.AsOf = asOf
	p.Strategy = strings.TrimSpace(r.URL.Query().Get("strategy"))
	return p, nil
}

// ParseUserID trims the ID and rejects empty, overlong or control-character
// values.
func ParseUserID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	switch {
	case id == "":
		return "", fmt.Errorf("%w: missing user id", errBadRequest)
	case len(id) > maxUserIDLength:
		return "", fmt.Errorf("%w: user id longer than %d bytes", errBadRequest, maxUserIDLength)
	case strings.IndexFunc(id, unicode.IsControl) >= 0:
		return "", fmt.Errorf("%w: user id contains control characters", errBadRequest)
	}
	return id, nil
}

// ParseAsOf accepts RFC3339 or YYYY-MM-DD (midnight UTC). An empty value
// returns now in UTC.
func ParseAsOf(raw string, now time.Time) (time.Time, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return now.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: as_of %q is not YYYY-MM-DD or RFC3339", errBadRequest, v)
	}
	return t, nil
}
