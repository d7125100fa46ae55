package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/senyabanana/forge-service/internal/models"
	"github.com/senyabanana/forge-service/internal/utils"
)

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 1 << 20

// sendServiceError логирует ошибку сервиса и отправляет ее клиенту с нужным кодом.
func sendServiceError(logger *log.Logger, w http.ResponseWriter, err error, fallback string) {
	logger.Println(err)
	var errorResponse *models.ErrorResponse
	if errors.As(err, &errorResponse) {
		message := errorResponse.Message
		if errorResponse.Kind == models.KindDatabase {
			message = fallback
		}
		utils.SendErrorResponse(w, errorResponse.StatusCode, message)
		return
	}
	utils.SendErrorResponse(w, http.StatusInternalServerError, fallback)
}

func sendResult(logger *log.Logger, w http.ResponseWriter, statusCode int, v interface{}) {
	if err := utils.SendJSON(w, statusCode, v); err != nil {
		logger.Println(err)
	}
}

// requireActor читает участника из заголовков, при ошибке отвечает 401.
func requireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, err := utils.ActorFromRequest(r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusUnauthorized, err.Error())
		return models.Actor{}, false
	}
	return actor, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
