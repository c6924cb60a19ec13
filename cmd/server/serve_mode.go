package main

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidServeMode rejects SERVE_MODE values outside the known surfaces.
var ErrInvalidServeMode = errors.New("invalid serve mode")

// ServeMode picks which route groups a process mounts: the server-rendered
// pages, the JSON API with CORS, or both.
type ServeMode string

const (
	ServeModeMonolith ServeMode = "monolith"
	ServeModeWeb      ServeMode = "web"
	ServeModeAPI      ServeMode = "api"
)

type serveSurfaces struct {
	frontend bool
	backend  bool
}

var serveModeSurfaces = map[ServeMode]serveSurfaces{
	ServeModeMonolith: {frontend: true, backend: true},
	ServeModeWeb:      {frontend: true},
	ServeModeAPI:      {backend: true},
}

// ParseServeMode is case insensitive. Blank input means monolith.
func ParseServeMode(rawInput string) (ServeMode, error) {
	mode := ServeMode(strings.ToLower(strings.TrimSpace(rawInput)))
	if mode == "" {
		return ServeModeMonolith, nil
	}
	if _, known := serveModeSurfaces[mode]; !known {
		return "", fmt.Errorf("%w: %q", ErrInvalidServeMode, rawInput)
	}
	return mode, nil
}

func (mode ServeMode) servesFrontend() bool {
	return serveModeSurfaces[mode].frontend
}

func (mode ServeMode) servesBackend() bool {
	return serveModeSurfaces[mode].backend
}
