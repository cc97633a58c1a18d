package resolver

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoAdapter is returned when no registry row matches a URL.
var ErrNoAdapter = errors.New("no adapter matches url")

// Registry is an ordered, first-match-wins table of domain fragments.
//
// Matching is a substring test against the raw URL string, not a parsed host,
// so a row may match on a path segment. With matchHost enabled the query
// string and fragment are excluded from the test.
type Registry struct {
	rows      []Descriptor
	matchHost bool
}

// NewRegistry validates rows and returns a Registry preserving their order.
func NewRegistry(rows []Descriptor, matchHost bool) (*Registry, error) {
	out := make([]Descriptor, 0, len(rows))
	for i, row := range rows {
		if strings.TrimSpace(row.DomainMatch) == "" {
			return nil, fmt.Errorf("registry row %d: domain_match is required", i)
		}
		if row.AdapterID == "" {
			return nil, fmt.Errorf("registry row %d (%s): adapter_id is required", i, row.DomainMatch)
		}
		switch row.Kind {
		case KindStatic, KindDynamic:
		default:
			return nil, fmt.Errorf("registry row %d (%s): unknown kind %q", i, row.DomainMatch, row.Kind)
		}
		out = append(out, row)
	}
	return &Registry{rows: out, matchHost: matchHost}, nil
}

// Resolve returns the first row whose fragment occurs in rawURL.
func (r *Registry) Resolve(rawURL string) (Descriptor, error) {
	subject := rawURL
	if r.matchHost {
		subject = hostAndPath(rawURL)
	}
	for _, row := range r.rows {
		if strings.Contains(subject, row.DomainMatch) {
			return row, nil
		}
	}
	return Descriptor{}, ErrNoAdapter
}

// Rows returns a copy of the registry table.
func (r *Registry) Rows() []Descriptor {
	out := make([]Descriptor, len(r.rows))
	copy(out, r.rows)
	return out
}

func hostAndPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Host) + u.EscapedPath()
}
