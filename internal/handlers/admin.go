package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ayunierto/ascencio-tax-api/internal/model"
	"github.com/ayunierto/ascencio-tax-api/internal/settings"
	"github.com/ayunierto/ascencio-tax-api/internal/storage"
)

// AdminHandler exposes the back-office CRUD surface: schedules, services,
// staff, system settings and the per-staff day view.
type AdminHandler struct {
	schedules        *storage.SchedulesRepository
	services         *storage.ServicesRepository
	staff            *storage.StaffRepository
	appointments     *storage.AppointmentsRepository
	settings         *storage.SettingsRepository
	settingsProvider *settings.Provider
	logger           *slog.Logger
}

func NewAdminHandler(
	schedules *storage.SchedulesRepository,
	services *storage.ServicesRepository,
	staff *storage.StaffRepository,
	appointments *storage.AppointmentsRepository,
	settingsRepo *storage.SettingsRepository,
	settingsProvider *settings.Provider,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		schedules:        schedules,
		services:         services,
		staff:            staff,
		appointments:     appointments,
		settings:         settingsRepo,
		settingsProvider: settingsProvider,
		logger:           logger,
	}
}

// Appointments serves the back-office day view: confirmed appointments for
// one staff member on one date, resolved in the business timezone.
func (h *AdminHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if staffID == "" || date == "" {
		http.Error(w, "staff_id and date are required", http.StatusBadRequest)
		return
	}
	loc, err := time.LoadLocation(h.settingsProvider.BusinessTimeZone(r.Context()))
	if err != nil {
		http.Error(w, "business timezone misconfigured", http.StatusInternalServerError)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	appts, err := h.appointments.ListConfirmedInRange(r.Context(), staffID, day, day.AddDate(0, 0, 1))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]appointmentResponse, 0, len(appts))
	for i := range appts {
		items = append(items, toAppointmentResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, items)
}

type scheduleRequest struct {
	StaffID   string `json:"staff_id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type scheduleResponse struct {
	ScheduleID string `json:"schedule_id"`
	StaffID    string `json:"staff_id"`
	DayOfWeek  int    `json:"day_of_week"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

func toScheduleResponse(s model.Schedule) scheduleResponse {
	return scheduleResponse{
		ScheduleID: s.ID,
		StaffID:    s.StaffID,
		DayOfWeek:  s.DayOfWeek,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
	}
}

func (h *AdminHandler) Schedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
		if staffID == "" {
			http.Error(w, "staff_id required", http.StatusBadRequest)
			return
		}
		scheds, err := h.schedules.ListByStaff(r.Context(), staffID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		items := make([]scheduleResponse, 0, len(scheds))
		for _, s := range scheds {
			items = append(items, toScheduleResponse(s))
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		var req scheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		sched := model.Schedule{
			StaffID:   strings.TrimSpace(req.StaffID),
			DayOfWeek: req.DayOfWeek,
			StartTime: strings.TrimSpace(req.StartTime),
			EndTime:   strings.TrimSpace(req.EndTime),
		}
		if sched.StaffID == "" {
			http.Error(w, "staff_id required", http.StatusBadRequest)
			return
		}
		if err := h.schedules.Create(r.Context(), &sched); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toScheduleResponse(sched))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "schedule id required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req scheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		sched := model.Schedule{
			ID:        id,
			StaffID:   strings.TrimSpace(req.StaffID),
			DayOfWeek: req.DayOfWeek,
			StartTime: strings.TrimSpace(req.StartTime),
			EndTime:   strings.TrimSpace(req.EndTime),
		}
		if err := h.schedules.Update(r.Context(), &sched); err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "schedule not found", http.StatusNotFound)
				return
			}
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponse(sched))

	case http.MethodDelete:
		if err := h.schedules.Delete(r.Context(), id); err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "schedule not found", http.StatusNotFound)
				return
			}
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type serviceRequest struct {
	Name            string   `json:"name"`
	Address         string   `json:"address"`
	DurationMinutes int      `json:"duration_minutes"`
	StaffIDs        []string `json:"staff_ids"`
}

type serviceResponse struct {
	ServiceID       string          `json:"service_id"`
	Name            string          `json:"name"`
	Address         string          `json:"address,omitempty"`
	DurationMinutes int             `json:"duration_minutes"`
	Staff           []slotStaffItem `json:"staff,omitempty"`
}

func toServiceResponse(svc *model.Service) serviceResponse {
	resp := serviceResponse{
		ServiceID:       svc.ID,
		Name:            svc.Name,
		Address:         svc.Address,
		DurationMinutes: svc.DurationMinutes,
	}
	for _, st := range svc.Staff {
		resp.Staff = append(resp.Staff, slotStaffItem{StaffID: st.ID, Name: st.FullName()})
	}
	return resp
}

func (h *AdminHandler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		svcs, err := h.services.List(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		items := make([]serviceResponse, 0, len(svcs))
		for i := range svcs {
			items = append(items, toServiceResponse(&svcs[i]))
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		var req serviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || req.DurationMinutes <= 0 {
			http.Error(w, "name and a positive duration_minutes are required", http.StatusBadRequest)
			return
		}
		svc := model.Service{
			Name:            req.Name,
			Address:         strings.TrimSpace(req.Address),
			DurationMinutes: req.DurationMinutes,
		}
		if err := h.services.Create(r.Context(), &svc, req.StaffIDs); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toServiceResponse(&svc))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) Service(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "service id required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		svc, err := h.services.Get(r.Context(), id)
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "service not found", http.StatusNotFound)
				return
			}
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toServiceResponse(svc))

	case http.MethodPut:
		var req serviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		svc := model.Service{
			ID:              id,
			Name:            strings.TrimSpace(req.Name),
			Address:         strings.TrimSpace(req.Address),
			DurationMinutes: req.DurationMinutes,
		}
		if err := h.services.Update(r.Context(), &svc, req.StaffIDs); err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "service not found", http.StatusNotFound)
				return
			}
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toServiceResponse(&svc))

	case http.MethodDelete:
		if err := h.services.Delete(r.Context(), id); err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "service not found", http.StatusNotFound)
				return
			}
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type staffRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	IsActive  *bool  `json:"is_active"`
}

type staffResponse struct {
	StaffID   string `json:"staff_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	IsActive  bool   `json:"is_active"`
}

func toStaffResponse(st *model.Staff) staffResponse {
	return staffResponse{
		StaffID:   st.ID,
		FirstName: st.FirstName,
		LastName:  st.LastName,
		Email:     st.Email,
		IsActive:  st.IsActive,
	}
}

func (h *AdminHandler) Staff(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		staff, err := h.staff.List(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		items := make([]staffResponse, 0, len(staff))
		for i := range staff {
			items = append(items, toStaffResponse(&staff[i]))
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		var req staffRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.FirstName = strings.TrimSpace(req.FirstName)
		req.LastName = strings.TrimSpace(req.LastName)
		if req.FirstName == "" || req.LastName == "" {
			http.Error(w, "first_name and last_name are required", http.StatusBadRequest)
			return
		}
		st := model.Staff{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     strings.TrimSpace(req.Email),
			IsActive:  true,
		}
		if req.IsActive != nil {
			st.IsActive = *req.IsActive
		}
		if err := h.staff.Create(r.Context(), &st); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toStaffResponse(&st))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) StaffMember(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "staff id required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		st, err := h.staff.Get(r.Context(), id)
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "staff not found", http.StatusNotFound)
				return
			}
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toStaffResponse(st))

	case http.MethodPut:
		var req staffRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		st := model.Staff{
			ID:        id,
			FirstName: strings.TrimSpace(req.FirstName),
			LastName:  strings.TrimSpace(req.LastName),
			Email:     strings.TrimSpace(req.Email),
			IsActive:  true,
		}
		if req.IsActive != nil {
			st.IsActive = *req.IsActive
		}
		if err := h.staff.Update(r.Context(), &st); err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "staff not found", http.StatusNotFound)
				return
			}
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toStaffResponse(&st))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type settingRequest struct {
	Value string `json:"value"`
}

func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	settings, err := h.settings.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *AdminHandler) Setting(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		http.Error(w, "setting key required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		value, err := h.settings.Get(r.Context(), key)
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "setting not found", http.StatusNotFound)
				return
			}
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})

	case http.MethodPut:
		var req settingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if err := h.settings.Set(r.Context(), key, req.Value); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
