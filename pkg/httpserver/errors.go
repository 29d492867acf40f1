package httpserver

import "errors"

var (
	ErrStart          = errors.New("failed to start HTTP server")
	ErrShutdown       = errors.New("failed to shut down HTTP server gracefully")
	ErrAlreadyRunning = errors.New("HTTP server already running")
)
