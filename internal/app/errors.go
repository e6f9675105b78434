package app

import (
	"fmt"
	"net/http"
)

const (
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeBadRequest        = "BAD_REQUEST"
	CodeTranslationFailed = "TRANSLATION_FAILED"
	CodeServerError       = "SERVER_ERROR"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errUnauthenticated() *DomainError {
	return domainError(http.StatusUnauthorized, CodeUnauthenticated, "authentication required", nil)
}

func errNotFound(what string) *DomainError {
	return domainError(http.StatusNotFound, CodeNotFound, what+" not found", nil)
}

func errForbidden(message string, details any) *DomainError {
	return domainError(http.StatusForbidden, CodeForbidden, message, details)
}

func errConflict(message string, details any) *DomainError {
	return domainError(http.StatusConflict, CodeConflict, message, details)
}

func errBadRequest(message string) *DomainError {
	return domainError(http.StatusBadRequest, CodeBadRequest, message, nil)
}
