package ml

import "errors"

var (
	// ErrModelNotFound means no artifact exists for the user. This is the
	// normal cold-start state, not a failure.
	ErrModelNotFound = errors.New("model not found")

	// ErrCorruptArtifact means an artifact exists but failed structural
	// validation. Callers treat it the same as a missing model.
	ErrCorruptArtifact = errors.New("corrupt model artifact")

	// ErrInsufficientData means training was requested with fewer than the
	// minimum number of labeled examples.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrDimensionMismatch means a feature vector does not match the width
	// the network was trained with.
	ErrDimensionMismatch = errors.New("feature vector dimension mismatch")
)
