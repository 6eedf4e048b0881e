package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/florentd35/teachly/pkg/errors"
)

const (
	// DefaultLimit caps list responses when the caller does not specify one.
	DefaultLimit = 10
	maxLimit     = 100

	defaultSort = "-created_at"
)

// Reserved query keys that are never treated as filters.
var reservedKeys = map[string]struct{}{
	"page":   {},
	"limit":  {},
	"sort":   {},
	"fields": {},
}

var comparisonOps = map[string]string{
	"gte": ">=",
	"gt":  ">",
	"lte": "<=",
	"lt":  "<",
}

// Filter is a single field condition parsed from the query string.
// Op is one of "eq", "gte", "gt", "lte", "lt".
type Filter struct {
	Field string
	Op    string
	Value string
}

// Params captures the generic list-query options shared by all collection
// endpoints: 1-based page, page size, sort order, field projection and
// arbitrary equality/range filters.
type Params struct {
	Page    int
	Limit   int
	Sort    []string
	Fields  []string
	Filters []Filter
}

// Allowed maps public query field names onto database columns. Only listed
// fields may be filtered, sorted or projected; anything else is rejected so
// callers cannot probe columns the endpoint does not expose.
type Allowed map[string]string

// Parse extracts Params from raw URL query values. Filter keys use the
// conventional "field[gte]=value" form; a bare "field=value" is an equality
// check.
func Parse(values url.Values) Params {
	p := Params{Page: 1, Limit: DefaultLimit}

	if page, err := strconv.Atoi(values.Get("page")); err == nil && page > 0 {
		p.Page = page
	}
	if limit, err := strconv.Atoi(values.Get("limit")); err == nil && limit > 0 {
		if limit > maxLimit {
			limit = maxLimit
		}
		p.Limit = limit
	}

	if sort := strings.TrimSpace(values.Get("sort")); sort != "" {
		for _, field := range strings.Split(sort, ",") {
			if field = strings.TrimSpace(field); field != "" {
				p.Sort = append(p.Sort, field)
			}
		}
	}

	if fields := strings.TrimSpace(values.Get("fields")); fields != "" {
		for _, field := range strings.Split(fields, ",") {
			if field = strings.TrimSpace(field); field != "" {
				p.Fields = append(p.Fields, field)
			}
		}
	}

	for key, vals := range values {
		if _, reserved := reservedKeys[key]; reserved || len(vals) == 0 {
			continue
		}

		field, op := splitFilterKey(key)
		for _, value := range vals {
			p.Filters = append(p.Filters, Filter{Field: field, Op: op, Value: value})
		}
	}

	return p
}

// splitFilterKey decomposes "sent[gte]" into ("sent", "gte"); keys without a
// bracket suffix are equality filters.
func splitFilterKey(key string) (field, op string) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, "eq"
	}

	op = key[open+1 : len(key)-1]
	if _, ok := comparisonOps[op]; !ok {
		return key, "eq"
	}
	return key[:open], op
}

// Apply adds the parsed filters to the statement. Structural conditions the
// caller has already attached are ANDed with these and can never be undone
// by query parameters.
func Apply(db *gorm.DB, p Params, allowed Allowed) (*gorm.DB, error) {
	for _, filter := range p.Filters {
		column, ok := allowed[filter.Field]
		if !ok {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("cannot filter on field %q", filter.Field))
		}

		if filter.Op == "eq" {
			db = db.Where(fmt.Sprintf("%s = ?", column), filter.Value)
			continue
		}
		db = db.Where(fmt.Sprintf("%s %s ?", column, comparisonOps[filter.Op]), filter.Value)
	}
	return db, nil
}

// Order adds the requested sort order, defaulting to newest-first.
func Order(db *gorm.DB, p Params, allowed Allowed) (*gorm.DB, error) {
	sort := p.Sort
	if len(sort) == 0 {
		sort = []string{defaultSort}
	}

	for _, field := range sort {
		desc := strings.HasPrefix(field, "-")
		name := strings.TrimPrefix(field, "-")

		column, ok := allowed[name]
		if !ok {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("cannot sort on field %q", name))
		}

		if desc {
			db = db.Order(column + " DESC")
		} else {
			db = db.Order(column + " ASC")
		}
	}
	return db, nil
}

// Select applies the projection allow-list when the caller asked for one.
func Select(db *gorm.DB, p Params, allowed Allowed) (*gorm.DB, error) {
	if len(p.Fields) == 0 {
		return db, nil
	}

	columns := make([]string, 0, len(p.Fields))
	for _, field := range p.Fields {
		column, ok := allowed[field]
		if !ok {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("cannot select field %q", field))
		}
		columns = append(columns, column)
	}
	return db.Select(columns), nil
}

// Result carries the page contents plus the totals handlers need for
// response metadata.
type Result[T any] struct {
	Items      []T
	Total      int64
	Page       int
	PerPage    int
	TotalPages int
}

// Run executes the full filter/count/sort/project/paginate pipeline over the
// supplied statement. It fails with NotFound when the requested page starts
// past the last matching row (page 1 is always valid, even when empty).
func Run[T any](db *gorm.DB, p Params, allowed Allowed) (*Result[T], error) {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}

	filtered, err := Apply(db, p, allowed)
	if err != nil {
		return nil, err
	}

	var total int64
	var probe T
	if err := filtered.Session(&gorm.Session{}).Model(&probe).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("query: count: %w", err)
	}

	skip := (p.Page - 1) * p.Limit
	if p.Page > 1 && int64(skip) >= total {
		return nil, apperrors.ErrNotFound.WithMessage("this page doesn't exist")
	}

	stmt, err := Order(filtered, p, allowed)
	if err != nil {
		return nil, err
	}
	stmt, err = Select(stmt, p, allowed)
	if err != nil {
		return nil, err
	}

	var items []T
	if err := stmt.Offset(skip).Limit(p.Limit).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("query: find: %w", err)
	}

	totalPages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return &Result[T]{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.Limit,
		TotalPages: totalPages,
	}, nil
}
