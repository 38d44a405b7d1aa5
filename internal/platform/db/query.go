package db

import (
	"fmt"
	"sort"
	"strings"
)

// FilterType selects how a query parameter is turned into a WHERE clause.
type FilterType int

const (
	FilterEq       FilterType = iota // exact match
	FilterText                       // case-insensitive substring over one or more columns
	FilterDateFrom                   // column >= value::date
	FilterDateTo                     // column <= value::date
	FilterUUID                       // exact match cast to uuid
)

// Filter maps a query parameter to the columns it constrains.
type Filter struct {
	Type    FilterType
	Columns []string
}

// Query builds parameterized SELECT/COUNT statements for list endpoints.
type Query struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

func NewQuery(table, cols string) *Query {
	return &Query{table: table, cols: cols, idx: 1}
}

// Idx returns the next available parameter index.
func (q *Query) Idx() int { return q.idx }

// Add appends a raw WHERE fragment (without leading "AND"). Placeholders in
// clause must start at Idx().
func (q *Query) Add(clause string, args ...interface{}) {
	q.where += " AND " + clause
	q.args = append(q.args, args...)
	q.idx += len(args)
}

// AddEq adds column = $n.
func (q *Query) AddEq(column string, value interface{}) {
	q.Add(fmt.Sprintf("%s = $%d", column, q.idx), value)
}

// AddText matches value as a substring of any of columns, ignoring case.
func (q *Query) AddText(value string, columns ...string) {
	if len(columns) == 0 {
		return
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", col, q.idx)
	}
	q.Add("("+strings.Join(parts, " OR ")+")", "%"+escapeLike(value)+"%")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Apply applies a single parameter using f.
func (q *Query) Apply(f Filter, value string) {
	if value == "" || len(f.Columns) == 0 {
		return
	}
	col := f.Columns[0]
	switch f.Type {
	case FilterEq:
		q.AddEq(col, value)
	case FilterUUID:
		q.Add(fmt.Sprintf("%s = $%d::uuid", col, q.idx), value)
	case FilterText:
		q.AddText(value, f.Columns...)
	case FilterDateFrom:
		q.Add(fmt.Sprintf("%s >= $%d::date", col, q.idx), value)
	case FilterDateTo:
		q.Add(fmt.Sprintf("%s <= $%d::date", col, q.idx), value)
	}
}

// ApplyParams applies every parameter that has a filter. Parameters are
// applied in name order so the generated SQL is stable.
func (q *Query) ApplyParams(params map[string]string, filters map[string]Filter) {
	names := make([]string, 0, len(params))
	for name := range params {
		if _, ok := filters[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		q.Apply(filters[name], params[name])
	}
}

// OrderBy sets the ORDER BY clause (without the "ORDER BY" keyword).
func (q *Query) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

// ApplySort sets ORDER BY from a comma separated list of sortable names,
// each optionally prefixed with - for descending. Unknown names are ignored.
func (q *Query) ApplySort(sortParam, defaultOrder string, sortable map[string]string) {
	var parts []string
	for _, field := range strings.Split(sortParam, ",") {
		field = strings.TrimSpace(field)
		dir := " ASC"
		if strings.HasPrefix(field, "-") {
			dir = " DESC"
			field = field[1:]
		}
		if col, ok := sortable[field]; ok {
			parts = append(parts, col+dir)
		}
	}
	if len(parts) == 0 {
		q.orderBy = defaultOrder
		return
	}
	q.orderBy = strings.Join(parts, ", ")
}

func (q *Query) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.table, q.where)
}

func (q *Query) CountArgs() []interface{} {
	return q.args
}

// DataSQL returns the data query with ORDER BY and LIMIT/OFFSET placeholders.
func (q *Query) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.table, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.idx, q.idx+1)
	return sql
}

// DataArgs returns the filter args followed by limit and offset.
func (q *Query) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(q.args)+2)
	copy(result, q.args)
	result[len(q.args)] = limit
	result[len(q.args)+1] = offset
	return result
}
