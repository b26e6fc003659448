package api

import "errors"

var (
	errUnknownSchedule = errors.New("unknown schedule")
	errNoManifest      = errors.New("manifest is not configured")
)
