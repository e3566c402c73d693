package errors

import "errors"

var (
	ErrNotFound = errors.New("schedule not found")

	ErrInvalidCategory = errors.New("invalid collection category")

	ErrInvalidDate = errors.New("invalid schedule date")

	ErrWeekdayMismatch = errors.New("date does not fall on the category's collection weekday")

	ErrDeadlinePassed = errors.New("submission deadline for this date has passed")

	ErrMonthlyConflict = errors.New("address already has a booking of this category in this month")

	ErrCapacityExceeded = errors.New("daily capacity reached for this category")

	ErrDuplicateProtocol = errors.New("protocol already exists")

	ErrAlreadyCompleted = errors.New("schedule already completed")

	ErrPhotoRequired = errors.New("completion photo is required")
)
