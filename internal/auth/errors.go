package auth

import (
	"errors"
)

// Code identifies why a sign-in failed.
type Code string

const (
	CodeUserNotFound    Code = "auth/user-not-found"
	CodeWrongPassword   Code = "auth/wrong-password"
	CodeInvalidEmail    Code = "auth/invalid-email"
	CodeUserDisabled    Code = "auth/user-disabled"
	CodeTooManyRequests Code = "auth/too-many-requests"
	CodeInvalidToken    Code = "auth/invalid-token"
	CodeInternal        Code = "auth/internal-error"
)

var messages = map[Code]string{
	CodeUserNotFound:    "Utente non trovato",
	CodeWrongPassword:   "Password errata",
	CodeInvalidEmail:    "Email non valida",
	CodeUserDisabled:    "Account disabilitato",
	CodeTooManyRequests: "Troppi tentativi. Riprova più tardi",
}

const defaultMessage = "Errore di autenticazione"

// Message returns the operator-facing text for code.
func Message(code Code) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return defaultMessage
}

// Error is a sign-in or token failure carrying a provider code.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// MessageFor maps any error to the operator-facing text. Errors without a
// provider code get the generic message.
func MessageFor(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return Message(ae.Code)
	}
	return defaultMessage
}

// CodeOf returns the provider code of err, or "" when it has none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
