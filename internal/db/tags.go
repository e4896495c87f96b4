package db

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagFilter selects rows by their JSON tag array. Matching is exact and
// case-sensitive. Any is an overlap test, All a containment test; both may
// be combined.
type TagFilter struct {
	Any []string
	All []string
}

func (f TagFilter) Empty() bool { return len(f.Any) == 0 && len(f.All) == 0 }

// Scope returns a gorm scope applying f to the column named column.
func (f TagFilter) Scope(column string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if len(f.Any) > 0 {
			exprs := make([]clause.Expression, 0, len(f.Any))
			for _, tag := range f.Any {
				exprs = append(exprs, datatypes.JSONArrayQuery(column).Contains(tag))
			}
			q = q.Where(clause.Or(exprs...))
		}
		for _, tag := range f.All {
			q = q.Where(datatypes.JSONArrayQuery(column).Contains(tag))
		}
		return q
	}
}
