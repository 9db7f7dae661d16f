package api

import (
	"net/http"

	"teukbyeolsil/internal/availability"
	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/service"
	"teukbyeolsil/internal/slots"
)

func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.actor(w, r); !ok {
		return
	}
	rooms, err := s.svc.Room.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orEmpty(rooms))
}

func (s *HTTPServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.actor(w, r); !ok {
		return
	}
	room, err := s.svc.Room.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, room)
}

func (s *HTTPServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var in service.RoomInput
	if !decodeJSON(w, r, &in) {
		return
	}
	room, err := s.svc.Room.Create(r.Context(), actor, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, room)
}

func (s *HTTPServer) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var in service.RoomInput
	if !decodeJSON(w, r, &in) {
		return
	}
	room, err := s.svc.Room.Update(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, room)
}

func (s *HTTPServer) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.svc.Room.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AvailabilityResponse is the per-day slot picture of one room.
type AvailabilityResponse struct {
	RoomID     string              `json:"room_id"`
	Date       string              `json:"date"`
	Slots      []availability.Slot `json:"slots"`
	Booked     []slots.Clock       `json:"booked"`
	Restricted []slots.Clock       `json:"restricted"`
	Past       []slots.Clock       `json:"past"`
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.actor(w, r); !ok {
		return
	}
	raw := r.URL.Query().Get("date")
	date, err := kst.ParseDate(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "날짜 형식이 올바르지 않습니다. (YYYY-MM-DD)", Field: "date"})
		return
	}

	roomID := r.PathValue("id")
	ix, err := s.svc.Booking.Availability(r.Context(), roomID, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, AvailabilityResponse{
		RoomID:     roomID,
		Date:       raw,
		Slots:      orEmpty(ix.Slots()),
		Booked:     orEmpty(ix.Booked()),
		Restricted: orEmpty(ix.Restricted()),
		Past:       orEmpty(ix.Past()),
	})
}
