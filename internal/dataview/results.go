// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package dataview

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/tessella-maps/tessella/internal/queryengine"
)

// CategoryRow is one group of a category aggregation. Agg marks the collapsed
// "Other" bucket when the distinct-category cap is exceeded.
type CategoryRow struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
	Agg      bool    `json:"agg"`
}

// CategoryResult is the category aggregation response contract.
type CategoryResult struct {
	Categories []CategoryRow `json:"categories"`
}

// HistogramBin is one non-empty bin of a histogram. Min, Max, and Avg are
// computed over the actual values that fell in the bin, not its nominal edges.
type HistogramBin struct {
	Bin  int     `json:"bin"`
	Freq int64   `json:"freq"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Avg  float64 `json:"avg"`
}

// HistogramResult is the histogram response contract. Bins are ordered by bin
// index ascending; empty bins are omitted.
type HistogramResult struct {
	Bins []HistogramBin `json:"bins"`
}

// FormulaResult is the scalar formula response contract.
type FormulaResult struct {
	Operation string  `json:"operation"`
	Column    string  `json:"column"`
	Result    float64 `json:"result"`
}

// ListResult is the raw projection response contract.
type ListResult struct {
	Rows []queryengine.Row `json:"rows"`
}

// toFloat64 coerces a scanned engine value to float64. DuckDB returns int64
// for BIGINT, float64 for DOUBLE, and *big.Int for HUGEINT (e.g. SUM over
// integer columns).
func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case int:
		return float64(n)
	case uint64:
		return float64(n)
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	case nil:
		return 0
	default:
		return 0
	}
}

// toInt64 coerces a scanned engine value to int64.
func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case *big.Int:
		return n.Int64()
	case nil:
		return 0
	default:
		return 0
	}
}

// toString coerces a scanned engine value to its string form. Category
// columns are usually text but numeric categories are valid too.
func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
