package domain

import (
	"encoding/base64"
	"strconv"
)

// Page sizes for list endpoints.
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// PageRequest selects one page of a listing. PageToken is opaque to callers;
// it is the value a previous page returned as its next token.
type PageRequest struct {
	MaxResults int
	PageToken  string
}

// Validate rejects page tokens this server did not issue.
func (p PageRequest) Validate() error {
	if _, err := decodeOffset(p.PageToken); err != nil {
		return ErrValidation("invalid page token %q", p.PageToken)
	}
	return nil
}

// Offset is the number of rows to skip. Unreadable tokens start at zero.
func (p PageRequest) Offset() int {
	n, _ := decodeOffset(p.PageToken)
	return n
}

// Limit is the page size, defaulted and capped.
func (p PageRequest) Limit() int {
	switch {
	case p.MaxResults <= 0:
		return DefaultPageSize
	case p.MaxResults > MaxPageSize:
		return MaxPageSize
	default:
		return p.MaxResults
	}
}

// Next returns the token for the page after this one, or "" once total
// rows have been covered.
func (p PageRequest) Next(total int64) string {
	next := p.Offset() + p.Limit()
	if int64(next) >= total {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(strconv.AppendInt(nil, int64(next), 10))
}

func decodeOffset(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0, ErrValidation("bad offset %q", raw)
	}
	return n, nil
}
