package database

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// RouteFilter selects live (not soft-deleted) routes. Zero-value fields are ignored.
type RouteFilter struct {
	IDs          []string
	Name         string
	Environment  string
	CollectionID string
	// ExcludeID skips one route, used for uniqueness checks on update.
	ExcludeID string
}

// CollectionFilter selects live collections.
type CollectionFilter struct {
	ID   string
	Slug string
}

// ImportFilter selects imported specs.
type ImportFilter struct {
	ID          string
	Status      []ImportStatus
	Environment string
}

// where accumulates positional SQL conditions.
type where struct {
	clauses []string
	args    []interface{}
}

// add appends a condition; the single '?' in clause becomes the next $n.
func (w *where) add(clause string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1))
}

func (w *where) raw(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

func (f RouteFilter) where() *where {
	w := &where{}
	w.raw("deleted_at IS NULL")
	if f.IDs != nil {
		w.add("id::text = ANY(?)", pq.Array(f.IDs))
	}
	if f.Name != "" {
		w.add("name = ?", f.Name)
	}
	if f.Environment != "" {
		w.add("environment = ?", f.Environment)
	}
	if f.CollectionID != "" {
		w.add("collection_id::text = ?", f.CollectionID)
	}
	if f.ExcludeID != "" {
		w.add("id::text <> ?", f.ExcludeID)
	}
	return w
}

func (f CollectionFilter) where() *where {
	w := &where{}
	w.raw("deleted_at IS NULL")
	if f.ID != "" {
		w.add("id::text = ?", f.ID)
	}
	if f.Slug != "" {
		w.add("slug = ?", f.Slug)
	}
	return w
}

func (f ImportFilter) where() *where {
	w := &where{}
	w.raw("deleted_at IS NULL")
	if f.ID != "" {
		w.add("id::text = ?", f.ID)
	}
	if len(f.Status) > 0 {
		statuses := make([]string, len(f.Status))
		for i, s := range f.Status {
			statuses[i] = string(s)
		}
		w.add("status = ANY(?)", pq.Array(statuses))
	}
	if f.Environment != "" {
		w.add("environment = ?", f.Environment)
	}
	return w
}
