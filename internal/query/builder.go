// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

// Package query provides SQL predicate building for the dataview engine.
// It ensures consistent parameter handling and reduces SQL injection risks.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// identPattern restricts column names to plain identifiers. Column names come
// from registered map configurations, not from per-request input, but they
// cannot be bound as query parameters so they are validated instead.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdent validates and quotes a column name for safe interpolation.
func QuoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

// WhereBuilder constructs SQL WHERE clauses with parameterized arguments.
// Clauses combine with AND; the zero restriction builds to "1=1".
//
// Example usage:
//
//	wb := query.NewWhereBuilder()
//	wb.AddCategoryReject("adm0_a3", []string{"CHN"})
//	wb.AddRange("pop_max", &min, nil)
//	whereClause, args := wb.Build()
type WhereBuilder struct {
	clauses []string
	args    []interface{}
	err     error
}

// NewWhereBuilder creates a new WhereBuilder instance.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		clauses: []string{},
		args:    []interface{}{},
	}
}

// AddClause adds a raw WHERE clause with its arguments.
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddCategoryAccept restricts a category column to the accepted values.
// An empty accept set is satisfiable by no row: it adds the FALSE clause,
// which is distinct from adding no clause at all.
func (wb *WhereBuilder) AddCategoryAccept(column string, values []string) *WhereBuilder {
	col, err := QuoteIdent(column)
	if err != nil {
		wb.fail(err)
		return wb
	}

	if len(values) == 0 {
		wb.clauses = append(wb.clauses, "1=0")
		return wb
	}

	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		wb.args = append(wb.args, v)
	}
	wb.clauses = append(wb.clauses, fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")))
	return wb
}

// AddCategoryReject excludes the rejected values from a category column.
// An empty reject set contributes no restriction.
func (wb *WhereBuilder) AddCategoryReject(column string, values []string) *WhereBuilder {
	if len(values) == 0 {
		return wb
	}

	col, err := QuoteIdent(column)
	if err != nil {
		wb.fail(err)
		return wb
	}

	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		wb.args = append(wb.args, v)
	}
	wb.clauses = append(wb.clauses, fmt.Sprintf("%s NOT IN (%s)", col, strings.Join(placeholders, ", ")))
	return wb
}

// AddRange adds bound comparisons for a numeric column. Nil bounds are
// skipped, allowing open-ended ranges.
func (wb *WhereBuilder) AddRange(column string, min, max *float64) *WhereBuilder {
	if min == nil && max == nil {
		return wb
	}

	col, err := QuoteIdent(column)
	if err != nil {
		wb.fail(err)
		return wb
	}

	if min != nil {
		wb.clauses = append(wb.clauses, col+" >= ?")
		wb.args = append(wb.args, *min)
	}
	if max != nil {
		wb.clauses = append(wb.clauses, col+" <= ?")
		wb.args = append(wb.args, *max)
	}
	return wb
}

// AddBoundingBox scopes rows to a longitude/latitude envelope.
func (wb *WhereBuilder) AddBoundingBox(lonColumn, latColumn string, west, south, east, north float64) *WhereBuilder {
	lon, err := QuoteIdent(lonColumn)
	if err != nil {
		wb.fail(err)
		return wb
	}
	lat, err := QuoteIdent(latColumn)
	if err != nil {
		wb.fail(err)
		return wb
	}

	wb.clauses = append(wb.clauses, fmt.Sprintf("%s BETWEEN ? AND ?", lon))
	wb.args = append(wb.args, west, east)
	wb.clauses = append(wb.clauses, fmt.Sprintf("%s BETWEEN ? AND ?", lat))
	wb.args = append(wb.args, south, north)
	return wb
}

// fail records the first builder error.
func (wb *WhereBuilder) fail(err error) {
	if wb.err == nil {
		wb.err = err
	}
}

// Err returns the first error recorded while adding clauses.
func (wb *WhereBuilder) Err() error {
	return wb.err
}

// Build constructs the final WHERE clause and returns it with arguments.
// Clauses are joined with "AND". Returns ("1=1", []) if no clauses were added.
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", []interface{}{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// Count returns the number of clauses added to the builder.
func (wb *WhereBuilder) Count() int {
	return len(wb.clauses)
}

// IsEmpty returns true if no clauses have been added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}
