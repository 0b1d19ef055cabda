package domain

import "errors"

// Failure classes. All of them except ErrConfig are local to one article or one source.
var (
	ErrFetch          = errors.New("fetch failed")
	ErrRelevanceCheck = errors.New("relevance check failed")
	ErrClassification = errors.New("classification failed")
	ErrSinkWrite      = errors.New("sink write failed")
	ErrConfig         = errors.New("invalid configuration")
)
