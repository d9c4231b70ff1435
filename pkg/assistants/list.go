package assistants

import (
	"mercator-hq/poebridge/pkg/apierror"
)

// List paging bounds.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ListParams selects a page of a list.
type ListParams struct {
	// Limit is 1..100; 0 means the default of 20.
	Limit int

	// Order is "asc" or "desc" by creation; empty means "desc".
	Order string

	// After returns items following this id in the chosen order.
	After string

	// Before returns items preceding this id in the chosen order.
	Before string
}

// normalize applies defaults and checks bounds.
func (p ListParams) normalize() (ListParams, error) {
	if p.Limit == 0 {
		p.Limit = DefaultListLimit
	}
	if p.Limit < 1 || p.Limit > MaxListLimit {
		return p, apierror.Validation("limit", "limit must be between 1 and %d", MaxListLimit)
	}
	switch p.Order {
	case "":
		p.Order = OrderDesc
	case OrderAsc, OrderDesc:
	default:
		return p, apierror.Validation("order", "order must be 'asc' or 'desc'")
	}
	return p, nil
}

// List is a page of objects.
type List[T any] struct {
	Object  string  `json:"object"`
	Data    []T     `json:"data"`
	FirstID *string `json:"first_id"`
	LastID  *string `json:"last_id"`
	HasMore bool    `json:"has_more"`
}

// paginate pages items, which must be in creation order. An unknown
// cursor yields an empty page.
func paginate[T any](items []T, id func(T) string, p ListParams) List[T] {
	ordered := make([]T, len(items))
	if p.Order == OrderDesc {
		for i, it := range items {
			ordered[len(items)-1-i] = it
		}
	} else {
		copy(ordered, items)
	}

	if p.After != "" {
		ordered = afterCursor(ordered, id, p.After)
	}
	if p.Before != "" {
		ordered = beforeCursor(ordered, id, p.Before)
	}

	page := List[T]{Object: "list", Data: []T{}}
	if len(ordered) > p.Limit {
		page.HasMore = true
		ordered = ordered[:p.Limit]
	}
	if len(ordered) > 0 {
		first, last := id(ordered[0]), id(ordered[len(ordered)-1])
		page.FirstID, page.LastID = &first, &last
		page.Data = ordered
	}
	return page
}

func afterCursor[T any](items []T, id func(T) string, cursor string) []T {
	for i, it := range items {
		if id(it) == cursor {
			return items[i+1:]
		}
	}
	return nil
}

func beforeCursor[T any](items []T, id func(T) string, cursor string) []T {
	for i, it := range items {
		if id(it) == cursor {
			return items[:i]
		}
	}
	return nil
}
