package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayunierto/ascencio-tax-api/internal/availability"
	"github.com/ayunierto/ascencio-tax-api/internal/booking"
	"github.com/ayunierto/ascencio-tax-api/internal/model"
)

type BookingHandler struct {
	booking *booking.Service
	engine  *availability.Engine
	logger  *slog.Logger
}

func NewBookingHandler(bookingSvc *booking.Service, engine *availability.Engine, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{booking: bookingSvc, engine: engine, logger: logger}
}

type slotStaffItem struct {
	StaffID string `json:"staff_id"`
	Name    string `json:"name"`
}

type slotItem struct {
	StartTime string          `json:"start_time"`
	EndTime   string          `json:"end_time"`
	Staff     []slotStaffItem `json:"staff"`
}

type appointmentResponse struct {
	AppointmentID   string `json:"appointment_id"`
	UserID          string `json:"user_id"`
	StaffID         string `json:"staff_id"`
	ServiceID       string `json:"service_id"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	TimeZone        string `json:"time_zone"`
	Status          string `json:"status"`
	Comments        string `json:"comments,omitempty"`
	MeetingLink     string `json:"meeting_link,omitempty"`
	CancelReason    string `json:"cancellation_reason,omitempty"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
	CalendarEventID string `json:"calendar_event_id,omitempty"`
}

func toAppointmentResponse(appt *model.Appointment) appointmentResponse {
	resp := appointmentResponse{
		AppointmentID:   appt.ID,
		UserID:          appt.UserID,
		StaffID:         appt.StaffID,
		ServiceID:       appt.ServiceID,
		StartTime:       appt.Start.UTC().Format(time.RFC3339),
		EndTime:         appt.End.UTC().Format(time.RFC3339),
		TimeZone:        appt.TimeZone,
		Status:          string(appt.Status),
		Comments:        appt.Comments,
		CancelReason:    appt.CancellationReason,
		CalendarEventID: appt.CalendarEventID,
	}
	if appt.MeetingLink != "" && appt.MeetingLink != model.PlaceholderID {
		resp.MeetingLink = appt.MeetingLink
	}
	if appt.CancelledAt != nil {
		resp.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Slots serves availability searches. Public: no account is needed to browse
// openings.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := availability.Query{
		ServiceID: strings.TrimSpace(r.URL.Query().Get("service_id")),
		Date:      strings.TrimSpace(r.URL.Query().Get("date")),
		TimeZone:  strings.TrimSpace(r.URL.Query().Get("time_zone")),
		StaffID:   strings.TrimSpace(r.URL.Query().Get("staff_id")),
	}
	if q.ServiceID == "" || q.Date == "" {
		http.Error(w, "service_id and date are required", http.StatusBadRequest)
		return
	}

	slots, err := h.engine.AvailableSlots(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, slot := range slots {
		item := slotItem{
			StartTime: slot.Start.UTC().Format(time.RFC3339),
			EndTime:   slot.End.UTC().Format(time.RFC3339),
			Staff:     make([]slotStaffItem, 0, len(slot.AvailableStaff)),
		}
		for _, st := range slot.AvailableStaff {
			item.Staff = append(item.Staff, slotStaffItem{StaffID: st.ID, Name: st.FullName()})
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

type createAppointmentRequest struct {
	StaffID   string `json:"staff_id"`
	ServiceID string `json:"service_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	TimeZone  string `json:"time_zone"`
	Comments  string `json:"comments"`
}

// Appointments handles the collection routes: create and list.
func (h *BookingHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) create(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.StaffID == "" || req.ServiceID == "" {
		http.Error(w, "staff_id and service_id are required", http.StatusBadRequest)
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}

	appt, err := h.booking.Create(r.Context(), booking.CreateInput{
		UserID:    claims.Sub,
		StaffID:   req.StaffID,
		ServiceID: req.ServiceID,
		Start:     start,
		End:       end,
		TimeZone:  strings.TrimSpace(req.TimeZone),
		Comments:  strings.TrimSpace(req.Comments),
		Source:    "app",
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	upcoming := strings.TrimSpace(r.URL.Query().Get("scope")) != "past"
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.booking.ListByUser(r.Context(), claims.Sub, upcoming, limit)
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

type updateAppointmentRequest struct {
	StaffID   string `json:"staff_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	TimeZone  string `json:"time_zone"`
	Comments  string `json:"comments"`
}

type cancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

// Appointment handles the item routes: get, reschedule and cancel.
func (h *BookingHandler) Appointment(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "appointment id required", http.StatusBadRequest)
		return
	}

	// Admins act on any appointment; clients only on their own.
	actorID := claims.Sub
	if claims.Role == "admin" {
		actorID = ""
	}

	switch r.Method {
	case http.MethodGet:
		appt, err := h.booking.Get(r.Context(), id, actorID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))

	case http.MethodPatch:
		var req updateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		in := booking.UpdateInput{
			ActorID:  actorID,
			StaffID:  strings.TrimSpace(req.StaffID),
			TimeZone: strings.TrimSpace(req.TimeZone),
			Comments: strings.TrimSpace(req.Comments),
		}
		if req.StartTime != "" {
			start, err := time.Parse(time.RFC3339, req.StartTime)
			if err != nil {
				http.Error(w, "invalid start_time", http.StatusBadRequest)
				return
			}
			in.Start = start
		}
		if req.EndTime != "" {
			end, err := time.Parse(time.RFC3339, req.EndTime)
			if err != nil {
				http.Error(w, "invalid end_time", http.StatusBadRequest)
				return
			}
			in.End = end
		}

		appt, err := h.booking.Update(r.Context(), id, in)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))

	case http.MethodDelete:
		var req cancelAppointmentRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		appt, err := h.booking.Cancel(r.Context(), id, actorID, strings.TrimSpace(req.Reason))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
