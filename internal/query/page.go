package query

import (
	"context"

	"parkadmin/internal/gateway"
)

// List is one page of a backend listing plus the controls to move around it.
// Page is zero-based
type List[T any] struct {
	Items         []T
	Page          int
	Size          int
	TotalPages    int
	TotalElements int
}

// Fetch loads one page through fetch
func Fetch[T any](ctx context.Context, fetch gateway.PageFunc[T], page, size int) (List[T], error) {
	if page < 0 {
		page = 0
	}
	result, err := fetch(ctx, page, size)
	if err != nil {
		return List[T]{Page: page, Size: size}, err
	}
	list := List[T]{
		Items:         result.Content,
		Page:          page,
		Size:          size,
		TotalPages:    result.TotalPages,
		TotalElements: result.TotalElements,
	}
	if list.TotalPages == 0 && size > 0 {
		list.TotalPages = (list.TotalElements + size - 1) / size
	}
	return list, nil
}

// Number is the one-based page number shown to users
func (l List[T]) Number() int { return l.Page + 1 }

func (l List[T]) HasPrev() bool { return l.Page > 0 }

func (l List[T]) HasNext() bool { return l.Page+1 < l.TotalPages }

func (l List[T]) PrevPage() int {
	if l.Page == 0 {
		return 0
	}
	return l.Page - 1
}

func (l List[T]) NextPage() int {
	if !l.HasNext() {
		return l.Page
	}
	return l.Page + 1
}
