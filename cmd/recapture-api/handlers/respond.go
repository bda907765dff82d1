// Package handlers provides HTTP handlers for the RecaptureDocs API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/recapturedocs/recapturedocs/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

// StatusFor maps an error to the HTTP status it is reported with.
func StatusFor(err error) int {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Type {
	case domain.ErrorTypeLookup:
		return http.StatusNotFound
	case domain.ErrorTypeValidation, domain.ErrorTypeSignature:
		return http.StatusBadRequest
	case domain.ErrorTypeIncomplete:
		return http.StatusConflict
	case domain.ErrorTypeSplit:
		return http.StatusUnprocessableEntity
	case domain.ErrorTypeRegistration, domain.ErrorTypePoll, domain.ErrorTypePaymentGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := map[string]string{
		"error":   message,
		"message": message,
		"detail":  err.Error(),
	}
	if kind := domain.TypeOf(err); kind != "" {
		resp["kind"] = string(kind)
	}
	writeJSON(w, StatusFor(err), resp)
}
