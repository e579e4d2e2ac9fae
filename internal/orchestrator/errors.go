package orchestrator

import "errors"

var (
	// ErrNotLoaded is returned when playback is operated before a graph is loaded.
	ErrNotLoaded = errors.New("no workflow loaded")
	// ErrAlreadyPlaying is returned by Play while already running.
	ErrAlreadyPlaying = errors.New("simulation already playing")
	// ErrNotRunning is returned by Pause when playback is not running.
	ErrNotRunning = errors.New("simulation not running")
	// ErrRunComplete is returned by Play and Step after the terminal stage was reached.
	ErrRunComplete = errors.New("simulation complete, reset required")
	// ErrInvalidSpeed is returned for multipliers outside the supported range.
	ErrInvalidSpeed = errors.New("invalid speed multiplier")
)
