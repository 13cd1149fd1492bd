package myinvois

import (
	"context"
	"encoding/json"
)

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// SubmitResult resultado de un envío. RemoteID vacío = el API no aceptó el documento.
type SubmitResult struct {
	RemoteID   string
	StatusCode int
	Body       string
}

// StatusResult estado remoto de un documento.
type StatusResult struct {
	Status     string
	LongID     string
	StatusCode int
	Body       string
}

// CancelResult resultado de una solicitud de cancelación.
type CancelResult struct {
	Accepted   bool
	StatusCode int
	Body       string
}

// TINResult resultado de la validación de un TIN.
type TINResult struct {
	Valid      bool
	StatusCode int
	Body       string
}

// Transport define el puerto de salida hacia el API MyInvois.
// Un error significa "sin respuesta" (red, timeout): no hubo cambio remoto
// y es seguro reintentar. Cualquier respuesta HTTP llega como resultado.
type Transport interface {
	Submit(ctx context.Context, documentHash, documentNo, documentBase64 string) (*SubmitResult, error)
	GetStatus(ctx context.Context, remoteID string) (*StatusResult, error)
	Cancel(ctx context.Context, remoteID, reason string) (*CancelResult, error)
	ValidateTIN(ctx context.Context, tin, idType, idValue string) (*TINResult, error)
	// RefreshToken descarta el token en caché y pide uno nuevo.
	RefreshToken(ctx context.Context) error
}

// Código de error que devuelve el API cuando vence la ventana de cancelación.
const ErrorCodeOperationPeriodOver = "OperationPeriodOver"

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Target  string `json:"target"`
		} `json:"details"`
	} `json:"error"`
}

// WindowElapsed indica si el rechazo se debe a que venció el plazo de cancelación.
func (r *CancelResult) WindowElapsed() bool {
	if r == nil || r.Accepted {
		return false
	}
	var e apiError
	if err := json.Unmarshal([]byte(r.Body), &e); err != nil {
		return false
	}
	if e.Error.Code == ErrorCodeOperationPeriodOver {
		return true
	}
	for _, d := range e.Error.Details {
		if d.Code == ErrorCodeOperationPeriodOver {
			return true
		}
	}
	return false
}
