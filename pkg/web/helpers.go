package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the envelope every API answer is wrapped in.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

// RespondOK writes a successful envelope carrying data.
func RespondOK(w http.ResponseWriter, logger *slog.Logger, status int, message string, data any) {
	RespondJSON(w, logger, status, Response{Success: true, Message: message, Data: data})
}

// RespondFail writes a failed envelope with the given message and optional details in data.
func RespondFail(w http.ResponseWriter, logger *slog.Logger, status int, message string, data any) {
	RespondJSON(w, logger, status, Response{Success: false, Message: message, Data: data})
}

// RespondError writes a failed envelope without data.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	RespondFail(w, logger, status, message, nil)
}
