package ports

import "time"

// Metrics recibe los eventos observables del ciclo de vida y del planificador.
type Metrics interface {
	// SubmissionFinished registra el estado en que quedó un envío (submitted, retry, ...).
	SubmissionFinished(kind, status string)
	// TransportCall registra una llamada al API; outcome es "ok", "http_error" o "no_response".
	TransportCall(op, outcome string, elapsed time.Duration)
	// PassFinished registra una pasada del planificador con las filas procesadas.
	PassFinished(pass string, processed int, elapsed time.Duration)
	// PassSkipped registra una pasada omitida (lock tomado, deshabilitado).
	PassSkipped(pass, reason string)
}

// NopMetrics descarta todo.
type NopMetrics struct{}

func (NopMetrics) SubmissionFinished(string, string)           {}
func (NopMetrics) TransportCall(string, string, time.Duration) {}
func (NopMetrics) PassFinished(string, int, time.Duration)     {}
func (NopMetrics) PassSkipped(string, string)                  {}
