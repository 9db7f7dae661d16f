package api

import (
	"net/http"
	"strings"
	"time"

	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/internal/service"
)

func (s *HTTPServer) handleCheckReservation(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req service.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.svc.Booking.Check(r.Context(), actor, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req service.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := s.svc.Booking.Submit(r.Context(), actor, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleMyReservations(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	list, err := s.svc.Booking.ListMine(r.Context(), actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orEmpty(list))
}

func (s *HTTPServer) handleDeleteReservation(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.svc.Booking.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseFilter reads room_id, user_id, status (comma separated), from and to.
func parseFilter(r *http.Request) (models.ReservationFilter, *ErrorResponse) {
	q := r.URL.Query()
	f := models.ReservationFilter{
		RoomID: q.Get("room_id"),
		UserID: q.Get("user_id"),
	}
	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := models.Status(strings.TrimSpace(part))
			switch st {
			case models.StatusPending, models.StatusConfirmed, models.StatusRejected:
				f.Statuses = append(f.Statuses, st)
			default:
				return f, &ErrorResponse{Error: "알 수 없는 상태입니다.", Field: "status"}
			}
		}
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
		end  bool
	}{{"from", &f.From, false}, {"to", &f.To, true}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := kst.ParseDate(raw)
		if err != nil {
			return f, &ErrorResponse{Error: "날짜 형식이 올바르지 않습니다. (YYYY-MM-DD)", Field: p.name}
		}
		if p.end {
			d = d.AddDate(0, 0, 1)
		}
		*p.dst = d
	}
	return f, nil
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	filter, bad := parseFilter(r)
	if bad != nil {
		writeJSON(w, http.StatusBadRequest, bad)
		return
	}
	list, err := s.svc.Review.ListAll(r.Context(), actor, filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orEmpty(list))
}

func (s *HTTPServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Review.Approve(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *HTTPServer) handleReject(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.svc.Review.Reject(r.Context(), actor, r.PathValue("id"), req.Reason)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}
