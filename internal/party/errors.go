package party

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/charlesng35/partyfinder/pkg/errors"
)

var (
	ErrPostNotFound        = apperrors.New("PARTY_NOT_FOUND", "Party post not found", http.StatusNotFound)
	ErrSlotNotFound        = apperrors.New("SLOT_NOT_FOUND", "Slot not found in party post", http.StatusNotFound)
	ErrApplicationNotFound = apperrors.New("APPLICATION_NOT_FOUND", "Application not found", http.StatusNotFound)

	// ErrNotOwner is returned when a non-owner attempts an owner action.
	ErrNotOwner = apperrors.ErrForbidden.WithMessage("Only the party owner can perform this action")
	// ErrNotApplicant is returned when someone other than the applicant withdraws.
	ErrNotApplicant = apperrors.ErrForbidden.WithMessage("Only the applicant can withdraw this application")

	ErrInvalidTransition    = apperrors.New("INVALID_TRANSITION", "Action not allowed in the current state", http.StatusConflict)
	ErrDuplicateApplication = apperrors.New("DUPLICATE_APPLICATION", "You already have an active application for this party", http.StatusConflict)
	ErrSlotFull             = apperrors.New("SLOT_FULL", "Slot is already filled", http.StatusConflict)
	ErrRequirementNotMet    = apperrors.New("REQUIREMENT_NOT_MET", "Character does not meet the party requirements", http.StatusUnprocessableEntity)
)

// Kind classifies errors returned by the engine.
type Kind string

const (
	KindNone                 Kind = ""
	KindNotFound             Kind = "not_found"
	KindForbidden            Kind = "forbidden"
	KindInvalidTransition    Kind = "invalid_transition"
	KindDuplicateApplication Kind = "duplicate_application"
	KindSlotFull             Kind = "slot_full"
	KindRequirementNotMet    Kind = "requirement_not_met"
	KindInvalidInput         Kind = "invalid_input"
	KindInternal             Kind = "internal"
)

// KindOf maps err to its kind. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPostNotFound), errors.Is(err, ErrSlotNotFound), errors.Is(err, ErrApplicationNotFound):
		return KindNotFound
	case errors.Is(err, apperrors.ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrDuplicateApplication):
		return KindDuplicateApplication
	case errors.Is(err, ErrSlotFull):
		return KindSlotFull
	case errors.Is(err, ErrRequirementNotMet):
		return KindRequirementNotMet
	case errors.Is(err, apperrors.ErrBadRequest):
		return KindInvalidInput
	default:
		return KindInternal
	}
}

// Code returns the stable error code carried by err, or "ok" for nil.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.FromError(err).Code
}

func invalidInput(message string) error {
	return apperrors.NewBadRequest(message)
}

func checkUserID(id, field string) error {
	switch {
	case id == "":
		return invalidInput(field + " is required")
	case len(id) > MaxUserIDLength:
		return invalidInput(fmt.Sprintf("%s must be at most %d bytes", field, MaxUserIDLength))
	}
	return nil
}
