package storage

import "errors"

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrInvalidData     = errors.New("invalid project data")
	ErrStorageInit     = errors.New("project store initialization failed")
	ErrFileOperation   = errors.New("project store file operation failed")
)
