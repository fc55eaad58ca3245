// Package domain defines the entities the dashboard reads from and sends to the backend
package domain

import (
	"strings"
)

// ServiceType is the kind of service a location, slot or ticket provides
type ServiceType string

const (
	ServiceParking  ServiceType = "PARKING"
	ServiceCharging ServiceType = "CHARGING"
)

// Ticket status values the dashboard inspects
const (
	TicketStatusPaid      = "PAID"
	TicketStatusCancelled = "CANCELLED"
)

// Slot status values
const (
	SlotStatusValid   = "VALID"
	SlotStatusInvalid = "INVALID"
)

// Roles carried in the backend token scope claim
const (
	RoleAdmin = "ADMIN"
	RoleStaff = "STAFF"
	RoleUser  = "USER"
)

// Complaint status set by the dashboard when a dispute is handled
const ComplaintStatusComplete = "COMPLETE"

// Ticket is a reservation of a parking or charging slot for a time window
type Ticket struct {
	ID                      string      `json:"id" validate:"required"`
	BookingID               string      `json:"bookingId"`
	LocationID              string      `json:"locationId"`
	SlotID                  string      `json:"slotId"`
	QRCode                  string      `json:"qrCode"`
	UserID                  string      `json:"userId"`
	ServiceProvided         ServiceType `json:"serviceProvidedEnum" validate:"omitempty,oneof=PARKING CHARGING"`
	Status                  string      `json:"status" validate:"required"`
	Description             string      `json:"description"`
	Price                   float64     `json:"price"`
	CreatedAt               Time        `json:"createdAt"`
	UpdatedAt               Time        `json:"updatedAt"`
	StartDateTime           Time        `json:"startDateTime"`
	EndDateTime             Time        `json:"endDateTime"`
	PreviousEndDateTime     *Time       `json:"previousEndDateTime"`
	ExtensionPrice          *float64    `json:"extensionPrice"`
	TicketCausingConflictID *string     `json:"ticketCausingConflictId"`
	IsWantingExtension      *bool       `json:"isWantingExtension"`
	IsCheckIn               *bool       `json:"isCheckIn"`
	IsCheckOut              *bool       `json:"isCheckOut"`
	OverTimeFine            *float64    `json:"overTimeFine"`
	VehicleDescription      *string     `json:"vehicleDescription"`
	ActualLeaveTime         *Time       `json:"actualLeaveTime"`

	SlotNumber   string `json:"slotNumber"`
	ZoneGate     string `json:"zoneGate"`
	LocationName string `json:"locationName"`
}

// CheckedIn reports whether the backend recorded a check-in
func (t Ticket) CheckedIn() bool {
	return t.IsCheckIn != nil && *t.IsCheckIn
}

// CheckedOut reports whether the backend recorded a check-out
func (t Ticket) CheckedOut() bool {
	return t.IsCheckOut != nil && *t.IsCheckOut
}

// ShortID is the upper-cased id prefix shown in tables
func (t Ticket) ShortID() string {
	id := t.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}

// TicketEntry is a ticket plus the slot details the backend joins onto it.
// It is the row shape of the ticket listing, of conflict groups and of
// change-time requests
type TicketEntry struct {
	Ticket       Ticket `json:"ticket" validate:"required"`
	SlotNumber   string `json:"slotNumber"`
	ZoneGate     string `json:"zoneGate"`
	LocationName string `json:"locationName"`
}

// TicketRequest is a pending check-in or check-out request
type TicketRequest struct {
	ID     string `json:"id" validate:"required"`
	Ticket Ticket `json:"ticket" validate:"required"`
	Slot   *Slot  `json:"slot"`
}

// LocationID resolves the location either from the slot or from the ticket
func (r TicketRequest) LocationID() string {
	if r.Slot != nil && r.Slot.LocationID != "" {
		return r.Slot.LocationID
	}
	return r.Ticket.LocationID
}

// Lot renders "slot - zone/gate" or N/A
func (r TicketRequest) Lot() string {
	if r.Slot == nil || r.Slot.SlotNumber == "" {
		return "N/A"
	}
	group := r.Slot.Zone
	if group == "" {
		group = r.Slot.Gate
	}
	if group == "" {
		return "N/A"
	}
	return r.Slot.SlotNumber + " - " + group
}

// ConflictGroup is a ticket whose extension conflicts with other tickets.
// Parent is the ticket asking to extend; children hold the slots it collides with
type ConflictGroup struct {
	Parent   TicketEntry   `json:"parent" validate:"required"`
	Children []TicketEntry `json:"children" validate:"dive"`
}

// Slot is a physical parking space or charging position
type Slot struct {
	ID          string      `json:"id" validate:"required"`
	SlotNumber  string      `json:"slotNumber"`
	Zone        string      `json:"zone"`
	Gate        string      `json:"gate"`
	Type        ServiceType `json:"type"`
	Status      string      `json:"status"`
	LocationID  string      `json:"locationId"`
	Description string      `json:"description"`
}

// Group returns the zone for parking slots and the gate for charging slots
func (s Slot) Group(service ServiceType) string {
	var group string
	if service == ServiceCharging {
		group = s.Gate
	} else {
		group = s.Zone
	}
	if group == "" {
		return "UNKNOWN"
	}
	return group
}

// Location is a parking and/or charging facility
type Location struct {
	ID                       string         `json:"id" validate:"required"`
	Name                     string         `json:"name"`
	Address                  string         `json:"address"`
	Images                   []string       `json:"images"`
	Coordinates              []float64      `json:"coordinates"`
	LocationStatus           string         `json:"locationStatus"`
	Services                 []ServiceType  `json:"services"`
	TotalParkingSlots        int            `json:"totalParkingSlots"`
	TotalChargingSlots       int            `json:"totalChargingSlots"`
	ChargingGateDistribution map[string]int `json:"chargingGateDistribution"`
}

// Offers reports whether the location provides a service
func (l Location) Offers(service ServiceType) bool {
	for _, s := range l.Services {
		if s == service {
			return true
		}
	}
	return false
}

// NewLocation is the payload for creating a facility
type NewLocation struct {
	Name                     string         `json:"name" validate:"required"`
	Address                  string         `json:"address" validate:"required"`
	Images                   []string       `json:"images"`
	Coordinates              []float64      `json:"coordinates" validate:"len=2"`
	LocationStatus           string         `json:"locationStatus"`
	Services                 []ServiceType  `json:"services" validate:"min=1,dive,oneof=PARKING CHARGING"`
	TotalParkingSlots        int            `json:"totalParkingSlots,omitempty" validate:"gte=0"`
	ChargingGateDistribution map[string]int `json:"chargingGateDistribution,omitempty"`
}

// Invoice is a payment record
type Invoice struct {
	ID            string  `json:"id" validate:"required"`
	LocationID    string  `json:"locationId"`
	UserID        string  `json:"userId"`
	TicketsCount  int     `json:"ticketsCount"`
	Description   string  `json:"description"`
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	VoucherAmount float64 `json:"voucherAmount"`
	FinalAmount   float64 `json:"finalAmount"`
	CreatedAt     Time    `json:"createdAt"`
}

// RevenuePoint is one bucket of grouped revenue
type RevenuePoint struct {
	LocationID   string  `json:"locationId"`
	LocationName string  `json:"locationName"`
	Period       string  `json:"period"`
	TotalRevenue float64 `json:"totalRevenue"`
}

// Refund is a refund request tied to a booking
type Refund struct {
	ID          string   `json:"id" validate:"required"`
	BookingID   string   `json:"bookingId"`
	TicketIDs   []string `json:"ticketIds"`
	UserID      string   `json:"userId"`
	UserName    *string  `json:"userName"`
	Email       string   `json:"email"`
	Description string   `json:"description"`
	Amount      float64  `json:"amount"`
	Status      string   `json:"status"`
	CreatedAt   Time     `json:"createdAt"`
}

// Complaint is a customer dispute
type Complaint struct {
	ID          string   `json:"id" validate:"required"`
	UserEmail   string   `json:"userEmail"`
	Service     string   `json:"service"`
	Title       string   `json:"title"`
	BookingID   string   `json:"bookingId"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
	Status      string   `json:"disputeStatus"`
	CreatedAt   Time     `json:"createdAt"`
	UpdatedBy   string   `json:"updatedBy"`
	UpdatedAt   Time     `json:"updatedAt"`
}

// Voucher is a discount code
type Voucher struct {
	ID                 string  `json:"id" validate:"required"`
	Code               string  `json:"code"`
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	Status             string  `json:"status"`
	ValidFrom          Time    `json:"validFrom"`
	ValidUntil         Time    `json:"validUntil"`
	TotalUsageLimit    int     `json:"totalUsageLimit"`
	TotalUsed          int     `json:"totalUsed"`
	MinimumSpentAmount float64 `json:"minimumSpentAmount"`
	MaxUsagePerUser    int     `json:"maxUsagePerUser"`
	Percentage         bool    `json:"percentage"`
	DiscountAmount     float64 `json:"discountAmount"`
	ThumbnailURL       string  `json:"thumbnailUrl"`
}

// NewVoucher is the payload for creating a voucher
type NewVoucher struct {
	Code               string   `json:"code" validate:"required"`
	Title              string   `json:"title" validate:"required"`
	Description        string   `json:"description"`
	DiscountAmount     float64  `json:"discountAmount" validate:"gt=0"`
	MinimumSpentAmount float64  `json:"minimumSpentAmount" validate:"gte=0"`
	Percentage         bool     `json:"percentage"`
	MaxUsagePerUser    int      `json:"maxUsagePerUser" validate:"gte=1"`
	TotalUsageLimit    int      `json:"totalUsageLimit" validate:"gte=1"`
	ValidFrom          Time     `json:"validFrom"`
	ValidUntil         Time     `json:"validUntil"`
	ThumbnailURL       string   `json:"thumbnailURL"`
	UserSpecific       bool     `json:"userSpecific"`
	AllowedUserIDs     []string `json:"allowedUserIds"`
}

// Role is a backend role with its permissions
type Role struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// StaffUser is an account managed by admins
type StaffUser struct {
	ID            string  `json:"id" validate:"required"`
	Username      string  `json:"username"`
	FirstName     *string `json:"firstName"`
	LastName      *string `json:"lastName"`
	Dob           *string `json:"dob"`
	Roles         []Role  `json:"roles"`
	Email         string  `json:"email"`
	Phone         *string `json:"phone"`
	AvatarURL     *string `json:"avatarUrl"`
	EmailVerified bool    `json:"emailVerified"`
}

// FullName joins first and last names, falling back to the username
func (u StaffUser) FullName() string {
	var parts []string
	if u.FirstName != nil && *u.FirstName != "" {
		parts = append(parts, *u.FirstName)
	}
	if u.LastName != nil && *u.LastName != "" {
		parts = append(parts, *u.LastName)
	}
	if len(parts) == 0 {
		return u.Username
	}
	return strings.Join(parts, " ")
}

// HasRole checks role membership by name
func (u StaffUser) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// UserUpdate is the admin payload for editing an account
type UserUpdate struct {
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Email       string   `json:"email" validate:"required,email"`
	Phone       string   `json:"phone"`
	Dob         *string  `json:"dob"`
	AvatarURL   *string  `json:"avatarUrl"`
	NewPassword *string  `json:"newPassword"`
	RoleNames   []string `json:"roleNames"`
}

// BookingCounts is the statistics summary for the home page
type BookingCounts struct {
	Bookings int `json:"bookings"`
	Invoices int `json:"invoices"`
	Refunds  int `json:"refunds"`
}

// Deref returns the pointed-to value or the zero value for nil
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
