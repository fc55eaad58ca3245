package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"parkadmin/internal/domain"
)

const (
	pathLogin            = "/identity/auth/token"
	pathUsers            = "/identity/users/get-users-admin"
	pathUser             = "/identity/users/"
	pathCreateStaff      = "/identity/users/create-staff"
	pathUpdateUser       = "/identity/users/admin/update-user/"
	pathTickets          = "/app-data-service/tickets/pageable/find"
	pathCheckinRequests  = "/app-data-service/tickets/checkin-requests"
	pathCheckoutRequests = "/app-data-service/tickets/checkout-requests"
	pathVerifyRequired   = "/app-data-service/tickets/verify-required"
	pathChangeTime       = "/app-data-service/tickets/verify-required-change-time"
	pathReassignSlot     = "/app-data-service/tickets/reassign-slot"
	pathValidSlots       = "/app-data-service/slots/valid-by-type"
	pathSlots            = "/app-data-service/slots/find-pageable-slots"
	pathLocations        = "/app-data-service/locations/nearby"
	pathCreateLocation   = "/app-data-service/locations/create"
	pathInvoices         = "/app-data-service/api/invoices"
	pathRevenue          = "/app-data-service/api/invoices/revenue/grouped"
	pathTopLocations     = "/app-data-service/api/invoices/top-locations"
	pathBookingCounts    = "/app-data-service/bookings/stats/counts"
	pathRefunds          = "/app-data-service/api/refunds/get-refunds"
	pathComplaints       = "/dispute/api/filtered"
	pathComplaintCounts  = "/dispute/api/stats/counts"
	pathVouchers         = "/payment/vouchers/admin/all-vouchers"
	pathCreateVoucher    = "/payment/vouchers/create"
	pathUploadImages     = "/file/aws/upload-images"
)

// Layouts the backend expects in query strings
const (
	queryTimeLayout = "2006-01-02T15:04:05"
	queryDateLayout = "2006-01-02"
)

// Envelope is the identity service's response wrapper
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

// LoginResult is the token issued at sign-in
type LoginResult struct {
	Token      string      `json:"token" validate:"required"`
	ExpiryTime domain.Time `json:"expiryTime"`
}

// Login exchanges credentials for a bearer token. It is the only call made
// without a session
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	request := map[string]string{"email": email, "password": password}
	var response Envelope[LoginResult]
	if err := c.doPublic(ctx, http.MethodPost, pathLogin, request, &response); err != nil {
		return nil, err
	}
	if response.Result.Token == "" {
		return nil, &DecodeError{Path: pathLogin, Err: fmt.Errorf("empty token")}
	}
	return &response.Result, nil
}

// API is the gateway bound to one session's bearer token
type API struct {
	client   *Client
	tokens   TokenSource
	pageSize int
}

// NewAPI binds the client to a session. pageSize is used by the All* helpers
func NewAPI(client *Client, tokens TokenSource, pageSize int) *API {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &API{client: client, tokens: tokens, pageSize: pageSize}
}

// Do performs an arbitrary authenticated request for this session
func (a *API) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return a.client.Do(ctx, a.tokens, method, path, query, body, out)
}

// UploadImages uploads files for this session
func (a *API) UploadImages(ctx context.Context, files []UploadFile) ([]string, error) {
	return a.client.UploadImages(ctx, a.tokens, files)
}

func pageQuery(page, size int) url.Values {
	return url.Values{
		"page": {strconv.Itoa(page)},
		"size": {strconv.Itoa(size)},
	}
}

// Locations

// LocationsPage lists facilities around the configured search origin
func (a *API) LocationsPage(ctx context.Context, origin Origin, page, size int) (*Page[domain.Location], error) {
	query := pageQuery(page, size)
	query.Set("longitude", strconv.FormatFloat(origin.Longitude, 'f', -1, 64))
	query.Set("latitude", strconv.FormatFloat(origin.Latitude, 'f', -1, 64))
	query.Set("maxDistance", strconv.FormatFloat(origin.MaxDistance, 'f', -1, 64))

	var result Page[domain.Location]
	if err := a.Do(ctx, http.MethodGet, pathLocations, query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Origin is the search point for the nearby-locations listing
type Origin struct {
	Longitude   float64
	Latitude    float64
	MaxDistance float64
}

// AllLocations fetches every facility
func (a *API) AllLocations(ctx context.Context, origin Origin) ([]domain.Location, error) {
	return FetchAll(ctx, a.pageSize, func(ctx context.Context, page, size int) (*Page[domain.Location], error) {
		return a.LocationsPage(ctx, origin, page, size)
	}, func(l domain.Location) string { return l.ID })
}

// CreateLocation registers a new facility
func (a *API) CreateLocation(ctx context.Context, location domain.NewLocation) error {
	return a.Do(ctx, http.MethodPost, pathCreateLocation, nil, location, nil)
}

// Tickets

// TicketsPage lists the tickets of a location
func (a *API) TicketsPage(ctx context.Context, locationID string, page, size int) (*Page[domain.TicketEntry], error) {
	query := pageQuery(page, size)
	query.Set("locationId", locationID)

	var result Page[domain.TicketEntry]
	if err := a.Do(ctx, http.MethodGet, pathTickets, query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AllTickets fetches every ticket of a location
func (a *API) AllTickets(ctx context.Context, locationID string) ([]domain.TicketEntry, error) {
	return FetchAll(ctx, a.pageSize, func(ctx context.Context, page, size int) (*Page[domain.TicketEntry], error) {
		return a.TicketsPage(ctx, locationID, page, size)
	}, func(e domain.TicketEntry) string { return e.Ticket.ID })
}

// CheckinRequests returns the pending check-in requests of a location
func (a *API) CheckinRequests(ctx context.Context, locationID string) ([]domain.TicketRequest, error) {
	return a.ticketRequests(ctx, pathCheckinRequests, locationID, func(r domain.TicketRequest) bool {
		return !r.Ticket.CheckedIn()
	})
}

// CheckoutRequests returns the pending check-out requests of a location
func (a *API) CheckoutRequests(ctx context.Context, locationID string) ([]domain.TicketRequest, error) {
	return a.ticketRequests(ctx, pathCheckoutRequests, locationID, func(r domain.TicketRequest) bool {
		return !r.Ticket.CheckedOut()
	})
}

func (a *API) ticketRequests(ctx context.Context, path, locationID string, pending func(domain.TicketRequest) bool) ([]domain.TicketRequest, error) {
	var result Page[domain.TicketRequest]
	if err := a.Do(ctx, http.MethodGet, path, pageQuery(0, a.pageSize), nil, &result); err != nil {
		return nil, err
	}

	requests := make([]domain.TicketRequest, 0, len(result.Content))
	for _, r := range result.Content {
		if r.LocationID() == locationID && pending(r) {
			requests = append(requests, r)
		}
	}
	return requests, nil
}

// ConflictGroups returns the extension requests that collide with other tickets
func (a *API) ConflictGroups(ctx context.Context, locationID string) ([]domain.ConflictGroup, error) {
	query := pageQuery(0, a.pageSize)
	query.Set("locationId", locationID)

	var result Page[domain.ConflictGroup]
	if err := a.Do(ctx, http.MethodGet, pathVerifyRequired, query, nil, &result); err != nil {
		return nil, err
	}

	groups := make([]domain.ConflictGroup, 0, len(result.Content))
	for _, g := range result.Content {
		if g.Parent.Ticket.LocationID == locationID {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// ChangeTimeRequests returns the pending time-change requests of a location,
// newest start first
func (a *API) ChangeTimeRequests(ctx context.Context, locationID string) ([]domain.TicketEntry, error) {
	query := pageQuery(0, a.pageSize)
	query.Set("sort", "startDateTime,desc")

	var result Page[domain.TicketEntry]
	if err := a.Do(ctx, http.MethodGet, pathChangeTime, query, nil, &result); err != nil {
		return nil, err
	}

	entries := make([]domain.TicketEntry, 0, len(result.Content))
	for _, e := range result.Content {
		if e.Ticket.LocationID == locationID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// SlotQuery selects slots that are free for a service over a window
type SlotQuery struct {
	LocationID string
	Service    domain.ServiceType
	Start      time.Time
	End        time.Time
}

// AvailableSlots returns the slots free for the whole window
func (a *API) AvailableSlots(ctx context.Context, q SlotQuery) ([]domain.Slot, error) {
	query := url.Values{
		"locationId":  {q.LocationID},
		"serviceType": {string(q.Service)},
		"start":       {q.Start.Format(queryTimeLayout)},
		"end":         {q.End.Format(queryTimeLayout)},
	}

	var slots []domain.Slot
	if err := a.Do(ctx, http.MethodGet, pathValidSlots, query, nil, &slots); err != nil {
		return nil, err
	}
	if slots == nil {
		slots = []domain.Slot{}
	}
	return slots, nil
}

// ReassignSlot moves a conflicted ticket to another slot
func (a *API) ReassignSlot(ctx context.Context, conflictedTicketID, newSlotID string) error {
	query := url.Values{
		"conflictedTicketId": {conflictedTicketID},
		"newSlotId":          {newSlotID},
	}
	return a.Do(ctx, http.MethodPatch, pathReassignSlot, query, nil, nil)
}

// Slots

// SlotsPage lists the slots of a location
func (a *API) SlotsPage(ctx context.Context, locationID string, page, size int) (*Page[domain.Slot], error) {
	query := pageQuery(page, size)
	query.Set("locationId", locationID)

	var result Page[domain.Slot]
	if err := a.Do(ctx, http.MethodGet, pathSlots, query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AllSlots fetches every slot of a location
func (a *API) AllSlots(ctx context.Context, locationID string) ([]domain.Slot, error) {
	return FetchAll(ctx, a.pageSize, func(ctx context.Context, page, size int) (*Page[domain.Slot], error) {
		return a.SlotsPage(ctx, locationID, page, size)
	}, func(s domain.Slot) string { return s.ID })
}

// Invoices

// InvoiceFilter narrows invoice, revenue and statistics queries. Zero
// fields are omitted; dates are sent as calendar days
type InvoiceFilter struct {
	LocationID string
	Search     string
	From       time.Time
	To         time.Time
}

func (f InvoiceFilter) apply(query url.Values) {
	if f.LocationID != "" {
		query.Set("locationId", f.LocationID)
	}
	if f.Search != "" {
		query.Set("searchText", f.Search)
	}
	if !f.From.IsZero() {
		query.Set("fromDate", f.From.Format(queryDateLayout))
	}
	if !f.To.IsZero() {
		query.Set("toDate", f.To.Format(queryDateLayout))
	}
}

// InvoicesPage lists invoices, newest first
func (a *API) InvoicesPage(ctx context.Context, filter InvoiceFilter, page, size int) (*Page[domain.Invoice], error) {
	query := pageQuery(page, size)
	query.Set("sort", "createdAt,desc")
	filter.apply(query)

	var result Page[domain.Invoice]
	if err := a.Do(ctx, http.MethodGet, pathInvoices, query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Revenue returns revenue grouped per day
func (a *API) Revenue(ctx context.Context, filter InvoiceFilter) ([]domain.RevenuePoint, error) {
	query := url.Values{"groupType": {"day"}}
	filter.apply(query)

	var points []domain.RevenuePoint
	if err := a.Do(ctx, http.MethodGet, pathRevenue, query, nil, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// TopLocations returns the highest-earning locations over a window
func (a *API) TopLocations(ctx context.Context, filter InvoiceFilter) ([]domain.RevenuePoint, error) {
	query := url.Values{}
	filter.apply(query)

	var points []domain.RevenuePoint
	if err := a.Do(ctx, http.MethodGet, pathTopLocations, query, nil, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// BookingCounts returns booking, invoice and refund totals for the home page
func (a *API) BookingCounts(ctx context.Context, filter InvoiceFilter) (*domain.BookingCounts, error) {
	query := url.Values{}
	filter.apply(query)

	var counts domain.BookingCounts
	if err := a.Do(ctx, http.MethodGet, pathBookingCounts, query, nil, &counts); err != nil {
		return nil, err
	}
	return &counts, nil
}

// Refunds

// RefundsPage lists refunds, newest first
func (a *API) RefundsPage(ctx context.Context, page, size int) (*Page[domain.Refund], error) {
	query := pageQuery(page, size)
	query.Set("sortBy", "createdAt")
	query.Set("direction", "DESC")

	var result Page[domain.Refund]
	if err := a.Do(ctx, http.MethodGet, pathRefunds, query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Refund finds one refund. The backend has no lookup by id, so the listing
// is walked
func (a *API) Refund(ctx context.Context, id string) (*domain.Refund, error) {
	refunds, err := FetchAll(ctx, a.pageSize, a.RefundsPage, func(r domain.Refund) string { return r.ID })
	if err != nil {
		return nil, err
	}
	for i := range refunds {
		if refunds[i].ID == id {
			return &refunds[i], nil
		}
	}
	return nil, &HTTPError{StatusCode: http.StatusNotFound, Method: http.MethodGet, Path: pathRefunds, Body: "refund not found"}
}

// Complaints

// Complaints lists disputes visible to admins
func (a *API) Complaints(ctx context.Context) ([]domain.Complaint, error) {
	query := pageQuery(0, a.pageSize)
	query.Set("admin", "true")

	var result Page[domain.Complaint]
	if err := a.Do(ctx, http.MethodGet, pathComplaints, query, nil, &result); err != nil {
		return nil, err
	}
	return result.Content, nil
}

// ComplaintCount returns the number of disputes raised over a window
func (a *API) ComplaintCount(ctx context.Context, filter InvoiceFilter) (int, error) {
	query := url.Values{}
	filter.LocationID = ""
	filter.apply(query)

	var counts struct {
		Disputes int `json:"disputes"`
	}
	if err := a.Do(ctx, http.MethodGet, pathComplaintCounts, query, nil, &counts); err != nil {
		return 0, err
	}
	return counts.Disputes, nil
}

// Vouchers

// Vouchers lists every voucher
func (a *API) Vouchers(ctx context.Context) ([]domain.Voucher, error) {
	return FetchAll(ctx, a.pageSize, func(ctx context.Context, page, size int) (*Page[domain.Voucher], error) {
		var result Page[domain.Voucher]
		if err := a.Do(ctx, http.MethodGet, pathVouchers, pageQuery(page, size), nil, &result); err != nil {
			return nil, err
		}
		return &result, nil
	}, func(v domain.Voucher) string { return v.ID })
}

// CreateVoucher issues a new voucher
func (a *API) CreateVoucher(ctx context.Context, voucher domain.NewVoucher) error {
	return a.Do(ctx, http.MethodPost, pathCreateVoucher, nil, voucher, nil)
}

// Users

// UsersPage lists accounts
func (a *API) UsersPage(ctx context.Context, page, size int) (*Page[domain.StaffUser], error) {
	var response Envelope[Page[domain.StaffUser]]
	if err := a.Do(ctx, http.MethodGet, pathUsers, pageQuery(page, size), nil, &response); err != nil {
		return nil, err
	}
	return &response.Result, nil
}

// User fetches one account
func (a *API) User(ctx context.Context, id string) (*domain.StaffUser, error) {
	var response Envelope[domain.StaffUser]
	if err := a.Do(ctx, http.MethodGet, pathUser+url.PathEscape(id), nil, nil, &response); err != nil {
		return nil, err
	}
	return &response.Result, nil
}

// CreateStaff creates a staff account
func (a *API) CreateStaff(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return a.Do(ctx, http.MethodPost, pathCreateStaff, nil, body, nil)
}

// UpdateUser edits an account
func (a *API) UpdateUser(ctx context.Context, id string, update domain.UserUpdate) error {
	return a.Do(ctx, http.MethodPut, pathUpdateUser+url.PathEscape(id), nil, update, nil)
}
