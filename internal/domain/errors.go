package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Precondiciones del ciclo de vida (fatales, no se reintentan).
	ErrCertificateRequired = errors.New("se requiere un certificado activo para firmar")
	ErrInvalidCertificate  = errors.New("bundle PEM inválido: falta llave privada o certificado")
	ErrInvalidQueueToken   = errors.New("token de cola inválido")
	ErrOriginalNotEligible = errors.New("el documento original no está enviado/válido o no tiene UUID")
	ErrDuplicateCreditNote = errors.New("ya existe una nota de crédito vigente para la factura")
	ErrDuplicateRefundNote = errors.New("ya existe una nota de reembolso vigente para la factura")
	ErrNotCreditNote       = errors.New("el documento no es una nota de crédito")
	ErrNotDeletable        = errors.New("solo se pueden eliminar documentos fallidos, inválidos o cancelados")
	ErrSubmissionInFlight  = errors.New("ya hay un envío en curso para este número de documento")
	ErrOrderSkipped        = errors.New("pedido excluido del envío (método de pago wallet)")
	ErrStatusChanged       = errors.New("la fila cambió de estado desde que fue seleccionada")

	// Rechazos remotos en la cancelación.
	ErrCancellationWindowElapsed = errors.New("plazo de cancelación vencido: emitir nota de crédito")
	ErrCancellationRejected      = errors.New("cancelación rechazada por LHDN")

	// Transporte sin respuesta (solo se propaga desde Cancel y ValidateTIN).
	ErrRemoteUnavailable = errors.New("API de LHDN sin respuesta")
)
