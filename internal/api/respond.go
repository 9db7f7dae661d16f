package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"teukbyeolsil/internal/availability"
	"teukbyeolsil/internal/conflict"
	"teukbyeolsil/internal/database"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/internal/service"
	"teukbyeolsil/shared/access"
)

const (
	messageInvalid      = "입력값을 확인해주세요."
	messageNotFound     = "요청한 항목을 찾을 수 없습니다."
	messageRoomInUse    = "예약이 있는 특별실은 삭제할 수 없습니다."
	messageUnauthorized = "로그인이 필요합니다."
)

type envelope struct {
	Data any `json:"data"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error          string            `json:"error"`
	Field          string            `json:"field,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
	ConflictStatus string            `json:"conflict_status,omitempty"`
	Stage          string            `json:"stage,omitempty"`
	Occurrence     *int              `json:"occurrence,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, envelope{Data: v})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeServiceError maps service errors to status codes. Expected outcomes
// are not logged as errors.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *service.ValidationError
		fe service.FieldErrors
		re *availability.RestrictedError
	)

	switch {
	case errors.As(err, &fe):
		fields := make(map[string]string, len(fe))
		for _, e := range fe {
			fields[e.Field] = e.Message
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: messageInvalid, Fields: fields})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Message, Field: ve.Field})
	case access.IsAccessDenied(err):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, messageNotFound)
	case errors.As(err, &re):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:          availability.MessageRestricted,
			ConflictStatus: "restricted",
			Reason:         re.Reason,
		})
	case errors.Is(err, database.ErrRoomInUse):
		writeError(w, http.StatusConflict, messageRoomInUse)
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		if ce, ok := conflict.As(err); ok {
			occurrence := ce.Occurrence
			writeJSON(w, http.StatusConflict, ErrorResponse{
				Error:          ce.Message(),
				ConflictStatus: string(ce.Status()),
				Stage:          string(ce.Stage),
				Occurrence:     &occurrence,
			})
			return
		}
		s.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// actor resolves the caller. It writes the error response and returns false
// when the caller is unknown.
func (s *HTTPServer) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	id := r.Header.Get(s.identityHeader)
	if id == "" {
		writeError(w, http.StatusUnauthorized, messageUnauthorized)
		return models.Actor{}, false
	}
	a, err := s.svc.Access.CurrentActor(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return models.Actor{}, false
	}
	return a, true
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
