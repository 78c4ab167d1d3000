package model

import (
	"fmt"
	"strings"
)

// Profile is the signed-in user's profile as kept on the client.
type Profile struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// SignInResult is the response of the sign-in endpoint.
type SignInResult struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	Message     string `json:"message,omitempty"`
}

// ValidationError is returned when input fails client-side checks.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", strings.Join(e.Fields, ", "), e.Reason)
}

// ValidateCredentials checks sign-in input before it is sent.
func ValidateCredentials(email, password string) error {
	var missing []string
	if strings.TrimSpace(email) == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: "required"}
	}
	return nil
}
