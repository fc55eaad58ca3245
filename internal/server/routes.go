package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all application routes
func (s *Server) setupRoutes() {
	r := s.router

	// Health check endpoint
	r.Get("/health", s.handleHealth)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/login", s.handleLoginPage)
		r.With(s.rateLimit(s.loginLimiter)).Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
	})

	// Browser side of live notifications; authenticated per connection
	if s.deps.Hub != nil {
		r.Handle("/realtime/*", s.deps.Hub.Handler("/realtime", s.authenticateRealtime))
	}

	// Staff and admin
	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/", s.handleLanding)

		// Locations and slots
		r.Get("/locations", s.handleLocationsList)
		r.Post("/locations/select", s.handleSelectLocation)
		r.Get("/locations/{id}/slots", s.handleSlotsList)

		// Ticket board
		r.Get("/tickets", s.handleTicketBoard)
		r.Get("/tickets/{id}/qr.png", s.handleTicketQR)

		// Slot reassignment
		r.Post("/tickets/{id}/reassign", s.handleReassignStart)
		r.Get("/reassign", s.handleReassignPage)
		r.Post("/reassign/select", s.handleReassignSelect)
		r.Post("/reassign/confirm", s.handleReassignConfirm)
		r.Post("/reassign/cancel", s.handleReassignCancel)

		// Confirmed actions
		r.Post("/actions", s.handleActionPrompt)
		r.Get("/actions/{id}", s.handleActionPage)
		r.Post("/actions/{id}/confirm", s.handleActionConfirm)
		r.Post("/actions/{id}/cancel", s.handleActionCancel)

		// Finance and support
		r.Get("/refunds", s.handleRefundsList)
		r.Get("/refunds/{id}", s.handleRefundDetail)
		r.Get("/complaints", s.handleComplaintsList)
		r.Get("/complaints/{id}", s.handleComplaintDetail)

		r.Get("/notifications", s.handleNotifications)
	})

	// Admin only
	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Use(s.adminOnly)

		r.Get("/overview", s.handleHome)
		r.Get("/invoices", s.handleInvoicesList)
		r.Get("/revenue", s.handleRevenue)

		r.Get("/locations/new", s.handleNewLocationPage)
		r.Post("/locations", s.handleCreateLocation)

		r.Get("/vouchers", s.handleVouchersList)
		r.Get("/vouchers/new", s.handleNewVoucherPage)
		r.Post("/vouchers", s.handleCreateVoucher)

		r.Get("/staff", s.handleStaffList)
		r.Get("/staff/new", s.handleNewStaffPage)
		r.Post("/staff", s.handleCreateStaff)
		r.Get("/staff/{id}", s.handleEditStaffPage)
		r.Post("/staff/{id}", s.handleUpdateStaff)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}
