package graph

import (
	"strconv"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// Query is a parsed filter expression over note attributes. All clauses
// must match (implicit AND). It runs only against immutable snapshots, so
// repeated calls on the same snapshot return the same ordered result.
type Query struct {
	clauses []clause
}

type clause func(s *Snapshot, n models.Note) bool

var validKinds = map[string]struct{}{
	string(models.KindMarkdown):   {},
	string(models.KindCanvas):     {},
	string(models.KindAttachment): {},
	string(models.KindOther):      {},
}

// ParseQuery parses a whitespace-separated clause expression:
//
//	tag:<name>  kind:<kind>  path:<prefix>  text:<needle>  links<op><n>
//
// where <op> is one of >=, <=, >, <, =. An empty expression matches every
// note. Unrecognized clauses fail with a *apperr.QueryError naming the
// clause.
func ParseQuery(expr string) (*Query, error) {
	q := &Query{}
	for _, raw := range strings.Fields(expr) {
		c, err := parseClause(raw)
		if err != nil {
			return nil, err
		}
		q.clauses = append(q.clauses, c)
	}
	return q, nil
}

func parseClause(raw string) (clause, error) {
	switch {
	case strings.HasPrefix(raw, "tag:"):
		want := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(raw, "tag:"), "#"))
		if want == "" {
			return nil, &apperr.QueryError{Clause: raw, Reason: "empty tag"}
		}
		return func(_ *Snapshot, n models.Note) bool {
			for _, t := range n.Tags {
				if strings.ToLower(t) == want {
					return true
				}
			}
			return false
		}, nil

	case strings.HasPrefix(raw, "kind:"):
		want := strings.TrimPrefix(raw, "kind:")
		if _, ok := validKinds[want]; !ok {
			return nil, &apperr.QueryError{Clause: raw, Reason: "unknown kind"}
		}
		return func(_ *Snapshot, n models.Note) bool {
			return string(n.Kind) == want
		}, nil

	case strings.HasPrefix(raw, "path:"):
		prefix := strings.TrimPrefix(raw, "path:")
		if prefix == "" {
			return nil, &apperr.QueryError{Clause: raw, Reason: "empty path prefix"}
		}
		return func(_ *Snapshot, n models.Note) bool {
			return strings.HasPrefix(n.Path, prefix)
		}, nil

	case strings.HasPrefix(raw, "text:"):
		needle := strings.ToLower(strings.TrimPrefix(raw, "text:"))
		if needle == "" {
			return nil, &apperr.QueryError{Clause: raw, Reason: "empty text needle"}
		}
		return func(_ *Snapshot, n models.Note) bool {
			return strings.Contains(strings.ToLower(n.Title), needle) ||
				strings.Contains(strings.ToLower(n.Body), needle)
		}, nil

	case strings.HasPrefix(raw, "links"):
		return parseLinksClause(raw)
	}

	return nil, &apperr.QueryError{Clause: raw, Reason: "unknown clause"}
}

// parseLinksClause handles thresholds over a note's outgoing resolved
// link count, e.g. links>=2.
func parseLinksClause(raw string) (clause, error) {
	rest := strings.TrimPrefix(raw, "links")
	ops := []string{">=", "<=", ">", "<", "="}
	for _, op := range ops {
		if !strings.HasPrefix(rest, op) {
			continue
		}
		num := strings.TrimPrefix(rest, op)
		n, err := strconv.Atoi(num)
		if err != nil || n < 0 {
			return nil, &apperr.QueryError{Clause: raw, Reason: "invalid link count"}
		}
		cmp := op
		return func(s *Snapshot, note models.Note) bool {
			d := s.OutDegree(note.Path)
			switch cmp {
			case ">=":
				return d >= n
			case "<=":
				return d <= n
			case ">":
				return d > n
			case "<":
				return d < n
			default:
				return d == n
			}
		}, nil
	}
	return nil, &apperr.QueryError{Clause: raw, Reason: "expected comparison operator"}
}

// Run evaluates the query against a snapshot and returns matching note
// ids ordered by path. An empty result is valid, not an error.
func (q *Query) Run(s *Snapshot) []string {
	var out []string
	for _, p := range s.Paths {
		n := s.Notes[p]
		matched := true
		for _, c := range q.clauses {
			if !c(s, n) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, p)
		}
	}
	return out
}
