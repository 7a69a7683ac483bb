package model

import "errors"

var (
	errInvalidSignaturesRequired = errors.New("model: signatures_required must be >= 1")
	errCriticalNeedsTwoSigners   = errors.New("model: CRITICAL documents require signatures_required >= 2")
)
