package handler

import (
	"errors"

	"votecore/internal/domain"
	apperrors "votecore/pkg/errors"
)

// toAppError maps service and domain errors onto the HTTP error envelope
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var invalidOption *domain.InvalidOptionError
	if errors.As(err, &invalidOption) {
		return apperrors.NewValidationError(invalidOption.Error(), map[string]interface{}{
			"available_options": invalidOption.Available,
		})
	}

	var eligibility *domain.EligibilityError
	if errors.As(err, &eligibility) {
		return apperrors.NewEligibilityError(eligibility.Error(), string(eligibility.Reason))
	}

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		var details map[string]interface{}
		if validation.Field != "" {
			details = map[string]interface{}{"field": validation.Field}
		}
		return apperrors.NewValidationError(validation.Message, details)
	}

	switch {
	case errors.Is(err, domain.ErrPollNotFound):
		return apperrors.NewNotFoundError("Poll not found.")
	case errors.Is(err, domain.ErrUnidentifiableVoter):
		return apperrors.NewValidationError("Unable to identify voter", nil)
	default:
		return apperrors.NewInternalError("Internal server error", err)
	}
}
