package server

import "net/http"

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := messageResponse{Message: msg}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, status, resp)
}
