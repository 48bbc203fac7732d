package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type ErrorMessage struct {
	Message string `json:"message"`
}

func HttpError(w http.ResponseWriter, message string, statusCode int, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(ErrorMessage{Message: message})
	if err != nil {
		logger.Error("Error encountered when encoding error message", zap.Error(err))
	}
}
