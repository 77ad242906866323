package seismometer

import "errors"

// Faults of the sampling pipeline. They get wrapped with context where
// they occur, match them with errors.Is.
var (
	ErrSensorTimeout      = errors.New("sensor read timed out")
	ErrInsufficientWindow = errors.New("window too short to evaluate")
	ErrDegenerateSignal   = errors.New("degenerate signal, intensity undefined")
)
