package profile

import (
	"errors"
	"fmt"
)

// Sentinel errors. Validation failures are expected and dropped quietly by
// callers; collaborator failures are logged and skip a single actor.
var (
	ErrValidation          = errors.New("profile validation failed")
	ErrInsufficientHistory = fmt.Errorf("%w: insufficient history", ErrValidation)
	ErrUnprofitable        = fmt.Errorf("%w: below profitability threshold", ErrValidation)
	ErrCollaborator        = errors.New("collaborator failure")
)
