package apperrors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrRateLimited   = errors.New("author over daily mention limit")
	ErrLowUserScore  = errors.New("author user score below threshold")
	ErrNoParent      = errors.New("mention is not a reply")
	ErrHandleTaken   = errors.New("project handle already taken")
	ErrOwnerNotFound = errors.New("project owner could not be resolved")
)
