package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/senyabanana/forge-service/internal/models"
)

// Заголовки, которые выставляет прокси аутентификации.
const (
	ActorIDHeader   = "X-Actor-Id"
	ActorRoleHeader = "X-Actor-Role"
)

// SendErrorResponse отправляет ошибку в формате JSON
func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := models.NewErrorResponse(statusCode, message)
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Println(err)
	}
}

// SendJSON отправляет ответ в формате JSON
func SendJSON(w http.ResponseWriter, statusCode int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(v)
}

// ParseLimitOffset обрабатывает limit и offset
func ParseLimitOffset(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 50 {
			return 0, 0, fmt.Errorf("invalid limit parameter, must be a positive integer [0:50]")
		}
	} else {
		limit = 5
	}

	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter, must be a non-negative integer")
		}
	} else {
		offset = 0
	}

	return limit, offset, nil
}

// ActorFromRequest читает участника из заголовков запроса.
func ActorFromRequest(r *http.Request) (models.Actor, error) {
	actor := models.Actor{
		UserID: strings.TrimSpace(r.Header.Get(ActorIDHeader)),
		Role:   models.ActorRole(strings.ToLower(strings.TrimSpace(r.Header.Get(ActorRoleHeader)))),
	}
	if actor.UserID == "" {
		return models.Actor{}, fmt.Errorf("missing %s header", ActorIDHeader)
	}
	if actor.Role == models.RoleSystem || !actor.Valid() {
		return models.Actor{}, fmt.Errorf("invalid %s header", ActorRoleHeader)
	}
	return actor, nil
}

// ClientIP возвращает адрес клиента с учетом X-Forwarded-For.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
