package service

import (
	"context"
	"errors"
	addresserrors "recolha/internal/addresses/errors"
	scheduleerrors "recolha/internal/schedules/errors"
	"recolha/internal/schedules/validator"
	apperrors "recolha/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

const storeName = "Schedule store"

// toAppError maps domain and store errors onto the HTTP-facing error type.
// message is used for failures that are neither business nor transient.
func toAppError(err error, message string) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return apperrors.Validation("Schedule validation failed", map[string]any{
			"errors": validationErrs,
		})
	}

	switch {
	case errors.Is(err, scheduleerrors.ErrNotFound):
		return apperrors.NotFound("Schedule")
	case errors.Is(err, addresserrors.ErrNotFound):
		return apperrors.NotFound("Address")
	case errors.Is(err, addresserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid address ID format")
	case errors.Is(err, scheduleerrors.ErrInvalidCategory),
		errors.Is(err, scheduleerrors.ErrInvalidDate):
		return apperrors.InvalidInput(err.Error())
	case errors.Is(err, scheduleerrors.ErrWeekdayMismatch):
		return apperrors.BusinessConflict(apperrors.ReasonWeekdayMismatch, err.Error())
	case errors.Is(err, scheduleerrors.ErrDeadlinePassed):
		return apperrors.BusinessConflict(apperrors.ReasonDeadlinePassed, err.Error())
	case errors.Is(err, scheduleerrors.ErrMonthlyConflict):
		return apperrors.BusinessConflict(apperrors.ReasonMonthlyConflict, scheduleerrors.ErrMonthlyConflict.Error())
	case errors.Is(err, scheduleerrors.ErrCapacityExceeded):
		return apperrors.BusinessConflict(apperrors.ReasonCapacityExceeded, err.Error())
	case errors.Is(err, scheduleerrors.ErrAlreadyCompleted):
		return apperrors.BusinessConflict(apperrors.ReasonAlreadyCompleted, scheduleerrors.ErrAlreadyCompleted.Error())
	case errors.Is(err, scheduleerrors.ErrPhotoRequired):
		return apperrors.Validation("Completion photo is required", map[string]any{
			"photo_ref": "required when a driver completes a collection",
		})
	case isTimeout(err):
		return apperrors.Timeout("The schedule store did not respond in time", err)
	case mongo.IsNetworkError(err):
		return apperrors.Unavailable(storeName, err)
	}

	return apperrors.Internal(message, err)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err)
}
