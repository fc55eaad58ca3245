package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parkadmin/internal/domain"
	"parkadmin/internal/gateway"
	"parkadmin/internal/query"
)

// listPageSize is the row count of the finance and staff tables
const listPageSize = 20

// invoiceFilterFrom reads the shared filter query parameters
func (s *Server) invoiceFilterFrom(r *http.Request) gateway.InvoiceFilter {
	from, to := monthToDate(s.now())
	return gateway.InvoiceFilter{
		LocationID: strings.TrimSpace(r.URL.Query().Get("location")),
		Search:     strings.TrimSpace(r.URL.Query().Get("q")),
		From:       dateParam(r, "from", from),
		To:         dateParam(r, "to", to),
	}
}

// handleInvoicesList shows one page of invoices
func (s *Server) handleInvoicesList(w http.ResponseWriter, r *http.Request) {
	api := s.apiFor(r)
	filter := s.invoiceFilterFrom(r)

	list, err := query.Fetch[domain.Invoice](r.Context(), func(ctx context.Context, page, size int) (*gateway.Page[domain.Invoice], error) {
		return api.InvoicesPage(ctx, filter, page, size)
	}, intParam(r, "page"), listPageSize)
	if err != nil {
		s.backendError(w, r, err)
		return
	}

	var total float64
	for _, inv := range list.Items {
		total += inv.FinalAmount
	}

	data := s.newPageData(w, r, "Invoices", "invoices")
	data.Data = map[string]any{
		"List":   list,
		"Filter": filter,
		"Total":  total,
	}
	s.render(w, r, "pages/invoices.html", data)
}

// handleRevenue shows daily revenue and the best locations
func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api := s.apiFor(r)
	filter := s.invoiceFilterFrom(r)

	points, err := api.Revenue(ctx, filter)
	if err != nil {
		s.backendError(w, r, err)
		return
	}
	var total float64
	for _, p := range points {
		total += p.TotalRevenue
	}

	page := map[string]any{
		"Filter": filter,
		"Points": points,
		"Total":  total,
	}
	if top, err := api.TopLocations(ctx, filter); err != nil {
		page["TopError"] = gateway.Message(err)
	} else {
		page["Top"] = top
	}

	data := s.newPageData(w, r, "Revenue", "revenue")
	data.Data = page
	s.render(w, r, "pages/revenue.html", data)
}

// handleRefundsList shows one page of refund requests
func (s *Server) handleRefundsList(w http.ResponseWriter, r *http.Request) {
	api := s.apiFor(r)

	list, err := query.Fetch[domain.Refund](r.Context(), api.RefundsPage, intParam(r, "page"), listPageSize)
	if err != nil {
		s.backendError(w, r, err)
		return
	}

	data := s.newPageData(w, r, "Refunds", "refunds")
	data.Data = map[string]any{"List": list}
	s.render(w, r, "pages/refunds.html", data)
}

// handleRefundDetail shows one refund
func (s *Server) handleRefundDetail(w http.ResponseWriter, r *http.Request) {
	refund, err := s.apiFor(r).Refund(r.Context(), getURLParam(r, "id"))
	if gateway.IsStatus(err, http.StatusNotFound) {
		s.renderError(w, r, http.StatusNotFound, "Refund not found.")
		return
	}
	if err != nil {
		s.backendError(w, r, err)
		return
	}

	data := s.newPageData(w, r, "Refund", "refunds")
	data.Data = refund
	s.render(w, r, "pages/refund.html", data)
}

// handleComplaintsList shows customer disputes, optionally by status
func (s *Server) handleComplaintsList(w http.ResponseWriter, r *http.Request) {
	complaints, err := s.apiFor(r).Complaints(r.Context())
	if err != nil {
		s.backendError(w, r, err)
		return
	}

	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" {
		filtered := complaints[:0]
		for _, c := range complaints {
			if strings.EqualFold(c.Status, status) {
				filtered = append(filtered, c)
			}
		}
		complaints = filtered
	}

	data := s.newPageData(w, r, "Complaints", "complaints")
	data.Data = map[string]any{
		"Complaints": complaints,
		"Status":     status,
		"ReturnTo":   r.URL.RequestURI(),
	}
	s.render(w, r, "pages/complaints.html", data)
}

// handleComplaintDetail shows one dispute with its completion action
func (s *Server) handleComplaintDetail(w http.ResponseWriter, r *http.Request) {
	complaints, err := s.apiFor(r).Complaints(r.Context())
	if err != nil {
		s.backendError(w, r, err)
		return
	}

	id := getURLParam(r, "id")
	for i := range complaints {
		if complaints[i].ID == id {
			data := s.newPageData(w, r, complaints[i].Title, "complaints")
			data.Data = map[string]any{
				"Complaint": complaints[i],
				"Complete":  strings.EqualFold(complaints[i].Status, domain.ComplaintStatusComplete),
				"ReturnTo":  r.URL.RequestURI(),
			}
			s.render(w, r, "pages/complaint.html", data)
			return
		}
	}
	s.renderError(w, r, http.StatusNotFound, "Complaint not found.")
}

// Vouchers

// handleVouchersList shows every voucher
func (s *Server) handleVouchersList(w http.ResponseWriter, r *http.Request) {
	vouchers, err := s.apiFor(r).Vouchers(r.Context())
	if err != nil {
		s.backendError(w, r, err)
		return
	}

	data := s.newPageData(w, r, "Vouchers", "vouchers")
	data.Data = map[string]any{"Vouchers": vouchers}
	s.render(w, r, "pages/vouchers.html", data)
}

// voucherForm mirrors the voucher form fields for re-rendering
type voucherForm struct {
	Code           string
	Title          string
	Description    string
	DiscountAmount string
	MinimumSpent   string
	Percentage     bool
	MaxPerUser     string
	TotalLimit     string
	ValidFrom      string
	ValidUntil     string
	Errors         []string
}

func (s *Server) handleNewVoucherPage(w http.ResponseWriter, r *http.Request) {
	today := s.now().Format(dateLayout)
	data := s.newPageData(w, r, "New voucher", "vouchers")
	data.Data = map[string]any{"Form": voucherForm{
		MinimumSpent: "0",
		MaxPerUser:   "1",
		TotalLimit:   "100",
		ValidFrom:    today,
		ValidUntil:   s.now().AddDate(0, 1, 0).Format(dateLayout),
	}}
	s.render(w, r, "pages/voucher_form.html", data)
}

// newVoucherFrom validates the form and builds the backend payload
func (s *Server) newVoucherFrom(form voucherForm) (domain.NewVoucher, []string) {
	var problems []string
	voucher := domain.NewVoucher{
		Code:        strings.ToUpper(strings.TrimSpace(form.Code)),
		Title:       strings.TrimSpace(form.Title),
		Description: strings.TrimSpace(form.Description),
		Percentage:  form.Percentage,
	}

	number := func(value, label string) float64 {
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			problems = append(problems, label+" must be a number.")
		}
		return f
	}
	integer := func(value, label string) int {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			problems = append(problems, label+" must be a whole number.")
		}
		return n
	}
	day := func(value, label string) domain.Time {
		t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), time.Local)
		if err != nil {
			problems = append(problems, label+" must be a date.")
		}
		return domain.Time{Time: t}
	}

	voucher.DiscountAmount = number(form.DiscountAmount, "Discount")
	voucher.MinimumSpentAmount = number(form.MinimumSpent, "Minimum spend")
	voucher.MaxUsagePerUser = integer(form.MaxPerUser, "Uses per customer")
	voucher.TotalUsageLimit = integer(form.TotalLimit, "Total uses")
	voucher.ValidFrom = day(form.ValidFrom, "Valid from")
	voucher.ValidUntil = day(form.ValidUntil, "Valid until")
	if len(problems) > 0 {
		return voucher, problems
	}

	// The last day is inclusive
	voucher.ValidUntil = domain.Time{Time: voucher.ValidUntil.AddDate(0, 0, 1).Add(-time.Second)}
	if !voucher.ValidUntil.After(voucher.ValidFrom.Time) {
		problems = append(problems, "Valid until must not be before valid from.")
	}
	if voucher.Percentage && voucher.DiscountAmount > 100 {
		problems = append(problems, "A percentage discount cannot exceed 100.")
	}
	if err := s.validate.Struct(voucher); err != nil {
		problems = append(problems, "Code, title, a positive discount and usage limits of at least 1 are required.")
	}
	return voucher, problems
}

// handleCreateVoucher issues a voucher, uploading its thumbnail first
func (s *Server) handleCreateVoucher(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "Error processing form", http.StatusBadRequest)
		return
	}

	form := voucherForm{
		Code:           r.FormValue("code"),
		Title:          r.FormValue("title"),
		Description:    r.FormValue("description"),
		DiscountAmount: r.FormValue("discount_amount"),
		MinimumSpent:   r.FormValue("minimum_spent"),
		Percentage:     r.FormValue("percentage") != "",
		MaxPerUser:     r.FormValue("max_per_user"),
		TotalLimit:     r.FormValue("total_limit"),
		ValidFrom:      r.FormValue("valid_from"),
		ValidUntil:     r.FormValue("valid_until"),
	}

	voucher, problems := s.newVoucherFrom(form)
	if len(problems) > 0 {
		form.Errors = problems
		data := s.newPageData(w, r, "New voucher", "vouchers")
		data.Data = map[string]any{"Form": form}
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "pages/voucher_form.html", data)
		return
	}

	ctx := r.Context()
	api := s.apiFor(r)

	files, err := uploadedFiles(r, "thumbnail")
	if err != nil {
		http.Error(w, "Error reading thumbnail", http.StatusBadRequest)
		return
	}
	if len(files) > 0 {
		urls, err := api.UploadImages(ctx, files[:1])
		if err != nil {
			s.backendError(w, r, err)
			return
		}
		if len(urls) > 0 {
			voucher.ThumbnailURL = urls[0]
		}
	}

	if err := api.CreateVoucher(ctx, voucher); err != nil {
		s.backendError(w, r, err)
		return
	}

	setFlash(w, "success", "Voucher created")
	http.Redirect(w, r, "/vouchers", http.StatusSeeOther)
}

// Staff

// handleStaffList shows one page of accounts
func (s *Server) handleStaffList(w http.ResponseWriter, r *http.Request) {
	api := s.apiFor(r)

	list, err := query.Fetch[domain.StaffUser](r.Context(), api.UsersPage, intParam(r, "page"), listPageSize)
	if err != nil {
		s.backendError(w, r, err)
		return
	}

	data := s.newPageData(w, r, "Staff", "staff")
	data.Data = map[string]any{"List": list}
	s.render(w, r, "pages/staff.html", data)
}

type staffForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

// userForm mirrors the account edit form
type userForm struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Dob       string
	Admin     bool
	Staff     bool
	Errors    []string
}

func (s *Server) handleNewStaffPage(w http.ResponseWriter, r *http.Request) {
	data := s.newPageData(w, r, "New staff account", "staff")
	data.Data = map[string]any{"New": true, "Form": userForm{}}
	s.render(w, r, "pages/staff_form.html", data)
}

// handleCreateStaff creates a staff account
func (s *Server) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error processing form", http.StatusBadRequest)
		return
	}

	form := staffForm{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	}
	if err := s.validate.Struct(form); err != nil {
		data := s.newPageData(w, r, "New staff account", "staff")
		data.Data = map[string]any{"New": true, "Form": userForm{
			Email:  form.Email,
			Errors: []string{"A valid email and a password of at least 8 characters are required."},
		}}
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "pages/staff_form.html", data)
		return
	}

	if err := s.apiFor(r).CreateStaff(r.Context(), form.Email, form.Password); err != nil {
		s.backendError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "staff account created", "email", form.Email, "by", getSession(r).Email)
	setFlash(w, "success", "Staff account created")
	http.Redirect(w, r, "/staff", http.StatusSeeOther)
}

// handleEditStaffPage shows the account editor
func (s *Server) handleEditStaffPage(w http.ResponseWriter, r *http.Request) {
	user, err := s.apiFor(r).User(r.Context(), getURLParam(r, "id"))
	if gateway.IsStatus(err, http.StatusNotFound) {
		s.renderError(w, r, http.StatusNotFound, "Account not found.")
		return
	}
	if err != nil {
		s.backendError(w, r, err)
		return
	}

	form := userForm{
		ID:        user.ID,
		FirstName: domain.Deref(user.FirstName),
		LastName:  domain.Deref(user.LastName),
		Email:     user.Email,
		Phone:     domain.Deref(user.Phone),
		Dob:       domain.Deref(user.Dob),
		Admin:     user.HasRole(domain.RoleAdmin),
		Staff:     user.HasRole(domain.RoleStaff),
	}

	data := s.newPageData(w, r, user.FullName(), "staff")
	data.Data = map[string]any{"Form": form}
	s.render(w, r, "pages/staff_form.html", data)
}

// handleUpdateStaff saves the account editor
func (s *Server) handleUpdateStaff(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error processing form", http.StatusBadRequest)
		return
	}

	id := getURLParam(r, "id")
	form := userForm{
		ID:        id,
		FirstName: strings.TrimSpace(r.FormValue("first_name")),
		LastName:  strings.TrimSpace(r.FormValue("last_name")),
		Email:     strings.TrimSpace(r.FormValue("email")),
		Phone:     strings.TrimSpace(r.FormValue("phone")),
		Dob:       strings.TrimSpace(r.FormValue("dob")),
		Admin:     r.FormValue("role_admin") != "",
		Staff:     r.FormValue("role_staff") != "",
	}

	update := domain.UserUpdate{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Phone:     form.Phone,
	}
	if form.Dob != "" {
		dob := form.Dob
		update.Dob = &dob
	}
	if password := r.FormValue("new_password"); password != "" {
		if len(password) < 8 {
			form.Errors = append(form.Errors, "New password must have at least 8 characters.")
		}
		update.NewPassword = &password
	}
	if form.Admin {
		update.RoleNames = append(update.RoleNames, domain.RoleAdmin)
	}
	if form.Staff {
		update.RoleNames = append(update.RoleNames, domain.RoleStaff)
	}
	if len(update.RoleNames) == 0 {
		update.RoleNames = []string{domain.RoleUser}
	}
	if err := s.validate.Struct(update); err != nil {
		form.Errors = append(form.Errors, "A valid email is required.")
	}

	if len(form.Errors) > 0 {
		data := s.newPageData(w, r, "Edit account", "staff")
		data.Data = map[string]any{"Form": form}
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "pages/staff_form.html", data)
		return
	}

	if err := s.apiFor(r).UpdateUser(r.Context(), id, update); err != nil {
		s.backendError(w, r, err)
		return
	}

	setFlash(w, "success", "Account updated")
	http.Redirect(w, r, "/staff", http.StatusSeeOther)
}
