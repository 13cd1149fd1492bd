package scheduler

import "errors"

var (
	// ErrUnknownPass se devuelve al pedir una pasada que no existe.
	ErrUnknownPass = errors.New("pasada desconocida")

	// ErrAlreadyRunning se devuelve al arrancar dos veces el runner.
	ErrAlreadyRunning = errors.New("el planificador ya está corriendo")
)
