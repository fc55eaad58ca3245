package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
)

type item struct {
	ID string `json:"id"`
}

// pagedBackend serves total items in pages of the requested size
func pagedBackend(total int) PageFunc[item] {
	return func(ctx context.Context, page, size int) (*Page[item], error) {
		start := page * size
		var content []item
		for i := start; i < start+size && i < total; i++ {
			content = append(content, item{ID: strconv.Itoa(i)})
		}
		return &Page[item]{Content: content, TotalElements: total}, nil
	}
}

func itemKey(i item) string { return i.ID }

func TestFetchAllYieldsEveryElementOnce(t *testing.T) {
	for _, total := range []int{0, 1, 9, 10, 11, 100, 257} {
		for _, size := range []int{1, 10, 100} {
			t.Run(fmt.Sprintf("T=%d/P=%d", total, size), func(t *testing.T) {
				for run := 0; run < 2; run++ {
					items, err := FetchAll(context.Background(), size, pagedBackend(total), itemKey)
					if err != nil {
						t.Fatalf("FetchAll: %v", err)
					}
					if len(items) != total {
						t.Fatalf("got %d items, want %d", len(items), total)
					}
					seen := map[string]bool{}
					for _, it := range items {
						if seen[it.ID] {
							t.Fatalf("duplicate %s", it.ID)
						}
						seen[it.ID] = true
					}
				}
			})
		}
	}
}

func TestFetchAllStopsAtReportedTotal(t *testing.T) {
	var requested []int
	backend := pagedBackend(20)
	fetch := func(ctx context.Context, page, size int) (*Page[item], error) {
		requested = append(requested, page)
		return backend(ctx, page, size)
	}

	if _, err := FetchAll(context.Background(), 10, fetch, nil); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(requested) != 2 || requested[0] != 0 || requested[1] != 1 {
		t.Fatalf("requested pages %v, want [0 1]", requested)
	}
}

func TestFetchAllEmptyPageTerminates(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, page, size int) (*Page[item], error) {
		calls++
		if page == 0 {
			return &Page[item]{Content: []item{{ID: "a"}}, TotalElements: 50}, nil
		}
		return &Page[item]{TotalElements: 50}, nil
	}

	items, err := FetchAll(context.Background(), 10, fetch, itemKey)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(items) != 1 || calls != 2 {
		t.Fatalf("items=%d calls=%d, want 1 and 2", len(items), calls)
	}
}

func TestFetchAllDropsShiftedDuplicates(t *testing.T) {
	pages := [][]item{
		{{ID: "a"}, {ID: "b"}},
		{{ID: "b"}, {ID: "c"}},
		{{ID: "d"}},
	}
	fetch := func(ctx context.Context, page, size int) (*Page[item], error) {
		if page >= len(pages) {
			return &Page[item]{TotalElements: 5}, nil
		}
		return &Page[item]{Content: pages[page], TotalElements: 5}, nil
	}

	items, err := FetchAll(context.Background(), 2, fetch, itemKey)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	want := []string{"a", "b", "c", "d"}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("items[%d] = %s, want %s", i, items[i].ID, id)
		}
	}
}

func TestFetchAllCountsDuplicatesTowardTotal(t *testing.T) {
	pages := [][]item{
		{{ID: "a"}, {ID: "b"}},
		{{ID: "b"}, {ID: "c"}},
		{{ID: "d"}},
	}
	requests := 0
	fetch := func(ctx context.Context, page, size int) (*Page[item], error) {
		requests++
		return &Page[item]{Content: pages[page], TotalElements: 4}, nil
	}

	items, err := FetchAll(context.Background(), 2, fetch, itemKey)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
	if len(items) != 3 || items[2].ID != "c" {
		t.Errorf("got %v, want a b c", items)
	}
}

func TestFetchAllPropagatesPageError(t *testing.T) {
	fetch := func(ctx context.Context, page, size int) (*Page[item], error) {
		if page == 1 {
			return nil, &HTTPError{StatusCode: http.StatusBadGateway, Method: http.MethodGet, Path: "/x"}
		}
		return &Page[item]{Content: []item{{ID: "a"}}, TotalElements: 3}, nil
	}

	items, err := FetchAll(context.Background(), 1, fetch, itemKey)
	if items != nil {
		t.Errorf("partial result returned: %v", items)
	}
	if !IsStatus(err, http.StatusBadGateway) {
		t.Fatalf("error = %v, want wrapped 502", err)
	}
}

func TestFetchAllHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetch := func(ctx context.Context, page, size int) (*Page[item], error) {
		cancel()
		return &Page[item]{Content: []item{{ID: strconv.Itoa(page)}}, TotalElements: 10}, nil
	}

	_, err := FetchAll(ctx, 1, fetch, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestAllTicketsOverHTTP(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathTickets {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("locationId") != "loc-1" {
			t.Errorf("locationId = %q", r.URL.Query().Get("locationId"))
		}
		switch r.URL.Query().Get("page") {
		case "0":
			w.Write([]byte(`{"content":[{"ticket":{"id":"t1","status":"PAID"}},{"ticket":{"id":"t2","status":"PAID"}}],"totalElements":3}`))
		case "1":
			w.Write([]byte(`{"content":[{"ticket":{"id":"t3","status":"CANCELLED"}}],"totalElements":3}`))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
			w.Write([]byte(`{"content":[],"totalElements":3}`))
		}
	})

	api := NewAPI(client, StaticToken("t"), 2)
	entries, err := api.AllTickets(context.Background(), "loc-1")
	if err != nil {
		t.Fatalf("AllTickets: %v", err)
	}
	if len(entries) != 3 || entries[2].Ticket.ID != "t3" {
		t.Fatalf("entries = %+v", entries)
	}
}
