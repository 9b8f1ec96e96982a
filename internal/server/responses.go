package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type messageResponse struct {
	Message string `json:"message"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
}

type createChatResponse struct {
	ChatID int64 `json:"chat_id"`
}

type sendMessageResponse struct {
	MessageID int64 `json:"message_id"`
}

// writeMessage replies with {"message": ...} and the given status code
func writeMessage(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(messageResponse{Message: msg})
}

// writeInternal hides the failure from the client and logs it with full detail
func writeInternal(logger *zap.SugaredLogger, w http.ResponseWriter, err error) {
	logger.Errorf("internal error: %v", err)
	writeMessage(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func writeJSON(logger *zap.SugaredLogger, w http.ResponseWriter, code int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		writeInternal(logger, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(payload); err != nil {
		logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
	}
}
