package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	domainErrors "github.com/commercekit/paygate/internal/domain/errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrProviderNotFound, http.StatusNotFound, "provider_not_found"},
	{domainErrors.ErrTransactionNotFound, http.StatusNotFound, "transaction_not_found"},
	{domainErrors.ErrOperationNotSupported, http.StatusUnprocessableEntity, "operation_not_supported"},
	{domainErrors.ErrRefundExceedsCaptured, http.StatusUnprocessableEntity, "refund_exceeds_captured"},
	{domainErrors.ErrStepInProgress, http.StatusConflict, "step_in_progress"},
	{domainErrors.ErrDuplicateIdempotencyKey, http.StatusConflict, "duplicate_request"},
	{domainErrors.ErrLockAcquisitionFailed, http.StatusServiceUnavailable, "lock_unavailable"},
	{domainErrors.ErrProviderUnavailable, http.StatusServiceUnavailable, "provider_unavailable"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{
		Error:      err.Error(),
		MessageKey: domainErrors.MessageKeyOf(err),
	}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		resp.Field = validationErr.Field
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	var declineErr *domainErrors.DeclineError
	if errors.As(err, &declineErr) {
		resp.Code = "payment_declined"
		resp.DeclineReason = string(declineErr.Reason)
		writeJSON(w, http.StatusPaymentRequired, resp)
		return
	}

	var transientErr *domainErrors.TransientError
	if errors.As(err, &transientErr) {
		resp.Code = "provider_unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	var protocolErr *domainErrors.ProtocolError
	if errors.As(err, &protocolErr) {
		resp.Code = "provider_protocol_error"
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	var configErr *domainErrors.ConfigurationError
	if errors.As(err, &configErr) {
		log.Error().Err(err).Str("provider", configErr.Provider).Msg("provider misconfigured")
		resp.Code = "provider_misconfigured"
		resp.Error = "payment provider misconfigured"
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			writeJSON(w, m.status, resp)
			return
		}
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("malformed_body", "body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError("invalid_field", ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("malformed_body", "body", err.Error())
	}
	return nil
}
