package auth

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
)

// passwordBody is the JSON form of a strength request.
type passwordBody struct {
	Password string `json:"password"`
}

// readPassword extracts the password field from a JSON or form body.
func readPassword(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body passwordBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", errors.New("invalid JSON body")
		}

		return body.Password, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", errors.New("invalid form body")
	}

	return r.PostFormValue("password"), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, description string) {
	writeJSON(w, status, map[string]string{
		"error":             errCode,
		"error_description": description,
	})
}
