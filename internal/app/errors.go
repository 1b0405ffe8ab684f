package app

import "errors"

var (
	ErrSessionExists    = errors.New("session already exists")
	ErrSessionNotFound  = errors.New("session not found")
	ErrAlreadyInSession = errors.New("connection already in a session")
)
