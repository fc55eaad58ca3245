package gateway

import (
	"context"
	"fmt"
)

// Page is the backend's paged listing shape
type Page[T any] struct {
	Content       []T `json:"content" validate:"dive"`
	TotalElements int `json:"totalElements" validate:"gte=0"`
	TotalPages    int `json:"totalPages" validate:"gte=0"`
	Number        int `json:"number"`
	Size          int `json:"size"`
}

// PageFunc fetches one zero-based page
type PageFunc[T any] func(ctx context.Context, page, size int) (*Page[T], error)

// FetchAll walks pages 0, 1, 2, ... sequentially until the number of
// elements received reaches the reported total or a page comes back empty.
// key, when non-nil, drops elements whose key was already seen so a
// collection that shifts between page requests does not yield duplicates.
// Dropped duplicates still count toward the reported total, so after such a
// shift the walk can stop with fewer unique elements than the total.
// The first failing page aborts the walk; no partial result is returned
func FetchAll[T any](ctx context.Context, size int, fetch PageFunc[T], key func(T) string) ([]T, error) {
	if size <= 0 {
		return nil, fmt.Errorf("gateway: page size must be positive, got %d", size)
	}

	var (
		items    []T
		received int
		seen     map[string]struct{}
	)
	if key != nil {
		seen = make(map[string]struct{})
	}

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := fetch(ctx, page, size)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", page, err)
		}
		if result == nil || len(result.Content) == 0 {
			break
		}

		received += len(result.Content)
		for _, item := range result.Content {
			if seen != nil {
				k := key(item)
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
			}
			items = append(items, item)
		}

		if received >= result.TotalElements {
			break
		}
	}

	if items == nil {
		items = []T{}
	}
	return items, nil
}
