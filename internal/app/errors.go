package app

import (
	"errors"

	"docchat/internal/repository"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDocumentNotFound = errors.New("document not found")
	ErrSessionNotFound  = repository.ErrSessionNotFound
	ErrMessageEmpty     = errors.New("message content is empty")
	ErrNotPDF           = errors.New("only pdf files are accepted")
	ErrFileTooLarge     = errors.New("file exceeds upload limit")
	ErrFileNotFound     = errors.New("document file not found")
)
