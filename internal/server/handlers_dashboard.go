package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"parkadmin/internal/domain"
	"parkadmin/internal/gateway"
	"parkadmin/internal/query"
	"parkadmin/internal/repository"
)

const dateLayout = "2006-01-02"

// maxUploadBytes bounds multipart forms carrying images
const maxUploadBytes = 10 << 20

// intParam reads a non-negative integer query parameter
func intParam(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// dateParam reads a yyyy-mm-dd query parameter, returning fallback when
// absent or malformed
func dateParam(r *http.Request, key string, fallback time.Time) time.Time {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	t, err := time.ParseInLocation(dateLayout, v, time.Local)
	if err != nil {
		return fallback
	}
	return t
}

// selectedLocation returns the location the user last worked on
func (s *Server) selectedLocation(r *http.Request) string {
	sess := getSession(r)
	if sess == nil {
		return ""
	}
	id, err := s.deps.Repos.Settings.Get(r.Context(), repository.LocationKey(sess.UserID))
	if err != nil {
		s.logger.WarnContext(r.Context(), "selected location unavailable", "error", err)
		return ""
	}
	return id
}

func (s *Server) origin() gateway.Origin {
	return gateway.Origin{
		Longitude:   s.config.Backend.Longitude,
		Latitude:    s.config.Backend.Latitude,
		MaxDistance: float64(s.config.Backend.MaxDistance),
	}
}

type homeStats struct {
	From       time.Time
	To         time.Time
	Counts     *domain.BookingCounts
	Complaints int
	Revenue    float64
	Top        []domain.RevenuePoint
	Errors     []string
}

// handleHome renders the statistics overview
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api := s.apiFor(r)

	from, to := monthToDate(s.now())
	filter := gateway.InvoiceFilter{
		From: dateParam(r, "from", from),
		To:   dateParam(r, "to", to),
	}
	stats := homeStats{From: filter.From, To: filter.To}

	counts, err := api.BookingCounts(ctx, filter)
	if errors.Is(err, gateway.ErrUnauthenticated) {
		s.backendError(w, r, err)
		return
	}
	if err != nil {
		stats.Errors = append(stats.Errors, gateway.Message(err))
	}
	stats.Counts = counts

	if n, err := api.ComplaintCount(ctx, filter); err != nil {
		stats.Errors = append(stats.Errors, gateway.Message(err))
	} else {
		stats.Complaints = n
	}

	if points, err := api.Revenue(ctx, filter); err != nil {
		stats.Errors = append(stats.Errors, gateway.Message(err))
	} else {
		for _, p := range points {
			stats.Revenue += p.TotalRevenue
		}
	}

	if top, err := api.TopLocations(ctx, filter); err != nil {
		stats.Errors = append(stats.Errors, gateway.Message(err))
	} else {
		stats.Top = top
	}

	data := s.newPageData(w, r, "Overview", "home")
	data.Data = stats
	s.render(w, r, "pages/home.html", data)
}

// serviceMix counts locations by the services they offer
type serviceMix struct {
	ParkingOnly  int
	ChargingOnly int
	Both         int
}

func mixOf(locations []domain.Location) serviceMix {
	var mix serviceMix
	for _, l := range locations {
		parking, charging := l.Offers(domain.ServiceParking), l.Offers(domain.ServiceCharging)
		switch {
		case parking && charging:
			mix.Both++
		case parking:
			mix.ParkingOnly++
		case charging:
			mix.ChargingOnly++
		}
	}
	return mix
}

// handleLocationsList shows one page of facilities
func (s *Server) handleLocationsList(w http.ResponseWriter, r *http.Request) {
	api := s.apiFor(r)
	origin := s.origin()

	list, err := query.Fetch[domain.Location](r.Context(), func(ctx context.Context, page, size int) (*gateway.Page[domain.Location], error) {
		return api.LocationsPage(ctx, origin, page, size)
	}, intParam(r, "page"), 10)
	if err != nil {
		s.backendError(w, r, err)
		return
	}

	data := s.newPageData(w, r, "Locations", "locations")
	data.Data = map[string]any{
		"List":     list,
		"Mix":      mixOf(list.Items),
		"Selected": s.selectedLocation(r),
	}
	s.render(w, r, "pages/locations.html", data)
}

// handleSelectLocation remembers the location the ticket board shows
func (s *Server) handleSelectLocation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error processing form", http.StatusBadRequest)
		return
	}
	locationID := strings.TrimSpace(r.FormValue("location_id"))
	if locationID == "" {
		http.Error(w, "location_id is required", http.StatusBadRequest)
		return
	}

	sess := getSession(r)
	if err := s.deps.Repos.Settings.Set(r.Context(), repository.LocationKey(sess.UserID), locationID); err != nil {
		s.logger.ErrorContext(r.Context(), "location not saved", "error", err)
		setFlash(w, "error", "Could not remember the selected location.")
	}
	http.Redirect(w, r, "/tickets", http.StatusSeeOther)
}

type slotGroup struct {
	Name  string
	Slots []domain.Slot
}

// groupByZone groups slots by zone (parking) or gate (charging)
func groupByZone(slots []domain.Slot) []slotGroup {
	index := map[string]int{}
	var groups []slotGroup
	for _, slot := range slots {
		name := fmt.Sprintf("%s %s", slot.Type, slot.Group(slot.Type))
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, slotGroup{Name: name})
		}
		groups[i].Slots = append(groups[i].Slots, slot)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

// handleSlotsList shows the slots of a location with their status toggles
func (s *Server) handleSlotsList(w http.ResponseWriter, r *http.Request) {
	locationID := getURLParam(r, "id")
	api := s.apiFor(r)

	list, err := query.Fetch[domain.Slot](r.Context(), func(ctx context.Context, page, size int) (*gateway.Page[domain.Slot], error) {
		return api.SlotsPage(ctx, locationID, page, size)
	}, intParam(r, "page"), 50)
	if err != nil {
		s.backendError(w, r, err)
		return
	}

	data := s.newPageData(w, r, "Slots", "locations")
	data.Data = map[string]any{
		"LocationID": locationID,
		"List":       list,
		"Groups":     groupByZone(list.Items),
		"ReturnTo":   r.URL.RequestURI(),
	}
	s.render(w, r, "pages/slots.html", data)
}

// handleNewLocationPage shows the facility form
func (s *Server) handleNewLocationPage(w http.ResponseWriter, r *http.Request) {
	data := s.newPageData(w, r, "New location", "locations")
	data.Data = map[string]any{"Form": locationForm{}}
	s.render(w, r, "pages/location_form.html", data)
}

// locationForm mirrors the facility form fields for re-rendering
type locationForm struct {
	Name         string
	Address      string
	Longitude    string
	Latitude     string
	Parking      bool
	Charging     bool
	ParkingSlots string
	GateLayout   string
	Errors       []string
}

// parseGateLayout reads "A=4, B=2" into a gate distribution
func parseGateLayout(layout string) (map[string]int, error) {
	gates := map[string]int{}
	for _, part := range strings.FieldsFunc(layout, func(r rune) bool { return r == ',' || r == '\n' || r == ';' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, count, ok := strings.Cut(part, "=")
		name = strings.ToUpper(strings.TrimSpace(name))
		if !ok || name == "" {
			return nil, fmt.Errorf("gate %q must look like A=4", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("gate %s needs a positive slot count", name)
		}
		gates[name] += n
	}
	return gates, nil
}

// newLocationFrom validates the form and builds the backend payload
func (s *Server) newLocationFrom(form locationForm) (domain.NewLocation, []string) {
	var problems []string
	location := domain.NewLocation{
		Name:           strings.TrimSpace(form.Name),
		Address:        strings.TrimSpace(form.Address),
		LocationStatus: "ACTIVE",
	}

	lon, errLon := strconv.ParseFloat(strings.TrimSpace(form.Longitude), 64)
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(form.Latitude), 64)
	if errLon != nil || errLat != nil || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		problems = append(problems, "Coordinates must be a valid longitude and latitude.")
	} else {
		location.Coordinates = []float64{lon, lat}
	}

	if form.Parking {
		location.Services = append(location.Services, domain.ServiceParking)
		n, err := strconv.Atoi(strings.TrimSpace(form.ParkingSlots))
		if err != nil || n <= 0 {
			problems = append(problems, "Parking locations need a positive number of slots.")
		}
		location.TotalParkingSlots = n
	}
	if form.Charging {
		location.Services = append(location.Services, domain.ServiceCharging)
		gates, err := parseGateLayout(form.GateLayout)
		switch {
		case err != nil:
			problems = append(problems, err.Error())
		case len(gates) == 0:
			problems = append(problems, "Charging locations need at least one gate.")
		}
		location.ChargingGateDistribution = gates
	}

	if err := s.validate.Struct(location); err != nil && len(problems) == 0 {
		problems = append(problems, "Name, address and at least one service are required.")
	}
	return location, problems
}

// handleCreateLocation registers a facility with the backend
func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "Error processing form", http.StatusBadRequest)
		return
	}

	form := locationForm{
		Name:         r.FormValue("name"),
		Address:      r.FormValue("address"),
		Longitude:    r.FormValue("longitude"),
		Latitude:     r.FormValue("latitude"),
		Parking:      r.FormValue("parking") != "",
		Charging:     r.FormValue("charging") != "",
		ParkingSlots: r.FormValue("parking_slots"),
		GateLayout:   r.FormValue("gates"),
	}

	location, problems := s.newLocationFrom(form)
	if len(problems) > 0 {
		form.Errors = problems
		data := s.newPageData(w, r, "New location", "locations")
		data.Data = map[string]any{"Form": form}
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "pages/location_form.html", data)
		return
	}

	ctx := r.Context()
	api := s.apiFor(r)

	files, err := uploadedFiles(r, "images")
	if err != nil {
		http.Error(w, "Error reading images", http.StatusBadRequest)
		return
	}
	if len(files) > 0 {
		urls, err := api.UploadImages(ctx, files)
		if err != nil {
			s.backendError(w, r, err)
			return
		}
		location.Images = urls
	}

	if err := api.CreateLocation(ctx, location); err != nil {
		s.backendError(w, r, err)
		return
	}

	setFlash(w, "success", "Location created")
	http.Redirect(w, r, "/locations", http.StatusSeeOther)
}

// uploadedFiles reads every non-empty file of a multipart field
func uploadedFiles(r *http.Request, field string) ([]gateway.UploadFile, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var files []gateway.UploadFile
	for _, header := range r.MultipartForm.File[field] {
		if header.Size == 0 {
			continue
		}
		f, err := header.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, gateway.UploadFile{Name: header.Filename, Content: bytes.NewReader(content)})
	}
	return files, nil
}
