package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-2xx response from the backend, carrying the error
// envelope's code and message.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

type wireUser struct {
	ID    string `json:"user_id"`
	Email string `json:"email"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type wireSession struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type nonceReply struct {
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nonce    string `json:"nonce"`
	DeviceID string `json:"device_id,omitempty"`
}

type loginReply struct {
	User    wireUser    `json:"user"`
	Session wireSession `json:"session"`
}

type refreshReply struct {
	Session wireSession `json:"session"`
}

type logoutAllReply struct {
	RevokedCount int `json:"revoked_count"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// doJSON performs one JSON round trip. Non-2xx responses come back as
// *APIError; transport failures as the underlying error.
func doJSON(ctx context.Context, client *http.Client, baseURL, method, path string, body, dst any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return err
		}
	}

	var r *http.Request
	var err error
	if reqBody != nil {
		r, err = http.NewRequestWithContext(ctx, method, strings.TrimRight(baseURL, "/")+path, reqBody)
	} else {
		r, err = http.NewRequestWithContext(ctx, method, strings.TrimRight(baseURL, "/")+path, nil)
	}
	if err != nil {
		return err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(r)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp)
	}
	if dst != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(dst)
	}
	return nil
}

func parseAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	var env errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}
