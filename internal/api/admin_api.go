package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/internal/restriction"
	"teukbyeolsil/internal/service"
	"teukbyeolsil/internal/slots"
	"teukbyeolsil/shared/audit"
)

// RestrictionPayload is the flat wire form of a restriction request.
type RestrictionPayload struct {
	RoomID    string       `json:"room_id"`
	Kind      string       `json:"kind"`
	StartDate string       `json:"start_date,omitempty"`
	EndDate   string       `json:"end_date,omitempty"`
	StartTime *slots.Clock `json:"start_time,omitempty"`
	EndTime   *slots.Clock `json:"end_time,omitempty"`
	Reason    string       `json:"reason"`
}

// request converts p. Field problems come back as a response body.
func (p RestrictionPayload) request() (service.RestrictionRequest, *ErrorResponse) {
	var window *restriction.TimeWindow
	switch {
	case p.StartTime != nil && p.EndTime != nil:
		window = &restriction.TimeWindow{From: *p.StartTime, To: *p.EndTime}
	case p.StartTime != nil || p.EndTime != nil:
		return service.RestrictionRequest{}, &ErrorResponse{Error: "시작 시간과 종료 시간을 모두 입력해주세요.", Field: "end_time"}
	}

	var period restriction.Period
	switch restriction.Kind(p.Kind) {
	case restriction.KindWeekday:
		period = restriction.Weekday(window)
	case restriction.KindWeekend:
		period = restriction.Weekend(window)
	case restriction.KindAllTime:
		period = restriction.AllTime(window)
	case restriction.KindDateRange:
		start, end, bad := parseRange(p.StartDate, p.EndDate)
		if bad != nil {
			return service.RestrictionRequest{}, bad
		}
		if start.IsZero() {
			period = restriction.Period{Kind: restriction.KindDateRange, Window: window}
		} else {
			period = restriction.DateRange(start, end, window)
		}
	default:
		period = restriction.Period{Kind: restriction.Kind(p.Kind), Window: window}
	}
	return service.RestrictionRequest{RoomID: p.RoomID, Period: period, Reason: p.Reason}, nil
}

func parseRange(startRaw, endRaw string) (time.Time, time.Time, *ErrorResponse) {
	var start, end time.Time
	var err error
	if startRaw != "" {
		if start, err = kst.ParseDate(startRaw); err != nil {
			return start, end, &ErrorResponse{Error: "날짜 형식이 올바르지 않습니다. (YYYY-MM-DD)", Field: "start_date"}
		}
	}
	if endRaw != "" {
		if end, err = kst.ParseDate(endRaw); err != nil {
			return start, end, &ErrorResponse{Error: "날짜 형식이 올바르지 않습니다. (YYYY-MM-DD)", Field: "end_date"}
		}
	}
	return start, end, nil
}

func (s *HTTPServer) handleListRestrictions(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	list, err := s.svc.Restriction.List(r.Context(), actor, activeOnly)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orEmpty(list))
}

func (s *HTTPServer) handleCreateRestriction(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var p RestrictionPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	req, bad := p.request()
	if bad != nil {
		writeJSON(w, http.StatusBadRequest, bad)
		return
	}
	rr, err := s.svc.Restriction.Create(r.Context(), actor, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, rr)
}

func (s *HTTPServer) handleSetRestrictionActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.actor(w, r)
		if !ok {
			return
		}
		rr, err := s.svc.Restriction.SetActive(r.Context(), actor, r.PathValue("id"), active)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, rr)
	}
}

func (s *HTTPServer) handleDeleteRestriction(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.svc.Restriction.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SweepResponse reports one archive run.
type SweepResponse struct {
	Archived int    `json:"archived_count"`
	Deleted  int    `json:"deleted_count"`
	Warning  string `json:"warning,omitempty"`
}

func (s *HTTPServer) handleArchiveSweep(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Archive.Sweep(r.Context(), actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := SweepResponse{Archived: res.Archived, Deleted: res.Deleted}
	if res.Warning != nil {
		s.logger.Warn().Err(res.Warning).Msg("archive sweep left originals in place")
		out.Warning = "보관은 완료되었으나 일부 원본 예약을 삭제하지 못했습니다."
	}
	writeData(w, http.StatusOK, out)
}

func sinceParam(r *http.Request) (time.Time, *ErrorResponse) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := kst.ParseDate(raw)
	if err != nil {
		return time.Time{}, &ErrorResponse{Error: "날짜 형식이 올바르지 않습니다. (YYYY-MM-DD)", Field: "since"}
	}
	return d, nil
}

func (s *HTTPServer) handleListArchive(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	since, bad := sinceParam(r)
	if bad != nil {
		writeJSON(w, http.StatusBadRequest, bad)
		return
	}
	list, err := s.svc.Archive.List(r.Context(), actor, since)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orEmpty(list))
}

func (s *HTTPServer) handleExportArchive(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	since, bad := sinceParam(r)
	if bad != nil {
		writeJSON(w, http.StatusBadRequest, bad)
		return
	}
	var buf bytes.Buffer
	if _, err := s.svc.Archive.Export(r.Context(), actor, since, &buf); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeWorkbook(w, audit.GenerateFilename("보관예약", kst.In(time.Now())), &buf)
}

// handleExportTables downloads a snapshot of every exported table.
func (s *HTTPServer) handleExportTables(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.svc.Archive.ExportTables(r.Context(), actor, &buf); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeWorkbook(w, audit.GenerateFilename("전체데이터", kst.In(time.Now())), &buf)
}

func writeWorkbook(w http.ResponseWriter, name string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) handleGetNotice(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.actor(w, r); !ok {
		return
	}
	n, err := s.svc.Notice.Get(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, n)
}

type noticeRequest struct {
	RestrictedHours string `json:"restricted_hours"`
	Notes           string `json:"notes"`
}

func (s *HTTPServer) handleUpdateNotice(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req noticeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := s.svc.Notice.Update(r.Context(), actor, models.SystemNotice{RestrictedHours: req.RestrictedHours, Notes: req.Notes})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, n)
}

// handleRegisterAccount creates or refreshes the caller's profile. It is the
// only route open to ids that have no account yet.
func (s *HTTPServer) handleRegisterAccount(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(s.identityHeader)
	if id == "" {
		writeError(w, http.StatusUnauthorized, messageUnauthorized)
		return
	}
	var in service.ProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := s.svc.Account.Register(r.Context(), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, u)
}

type accountDeleted struct {
	ReservationsRemoved int `json:"reservations_removed"`
}

func (s *HTTPServer) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	n, err := s.svc.Account.Delete(r.Context(), actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, accountDeleted{ReservationsRemoved: n})
}
