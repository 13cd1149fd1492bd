package entity

import (
	"strings"
	"time"
)

// Estados del ciclo de vida de un documento ante LHDN.
const (
	StatusProcessing = "processing" // Fila creada, envío en curso
	StatusSubmitted  = "submitted"  // Aceptado por el API (tiene UUID remoto)
	StatusValid      = "valid"      // Validado por LHDN
	StatusInvalid    = "invalid"    // Rechazado por validación remota
	StatusCancelled  = "cancelled"  // Cancelado dentro de la ventana permitida
	StatusRetry      = "retry"      // Envío fallido, pendiente de reintento
	StatusFailed     = "failed"     // Se agotaron los reintentos
	StatusQueued     = "queued"     // Diferido por token de cola
	StatusUnknown    = "unknown"    // Estado remoto no reconocido
)

// Prefijos de número de documento.
const (
	PrefixCreditNote = "CN-"
	PrefixRefundNote = "RN-"
	PrefixTest       = "TEST-"
)

// Código de respuesta HTTP con el que el API acusa recibo de un envío.
const ResponseCodeAccepted = 202

// InvoiceRecord es la fila del libro de envíos, una por número de documento.
type InvoiceRecord struct {
	ID             int64
	DocumentNo     string
	OrderRef       int64 // 0 = sin pedido (documentos sintéticos)
	RemoteID       string
	LongID         string
	ItemClass      string
	DocumentHash   string
	Payload        string // documento canónico en base64
	Status         string
	ResponseCode   int
	ResponseBody   string
	RetryCount     int
	QueueToken     string
	QueueAt        *time.Time
	QueueCheckedAt *time.Time // última revisión en la pasada de cola
	RefundComplete bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsCreditNote indica si el número corresponde a una nota de crédito.
func IsCreditNote(no string) bool { return strings.HasPrefix(no, PrefixCreditNote) }

// IsRefundNote indica si el número corresponde a una nota de reembolso.
func IsRefundNote(no string) bool { return strings.HasPrefix(no, PrefixRefundNote) }

// IsTest indica si el número corresponde a un documento de prueba.
func IsTest(no string) bool { return strings.HasPrefix(no, PrefixTest) }

// OriginalNumber quita el prefijo CN-/RN- y devuelve el número de la factura original.
func OriginalNumber(no string) string {
	switch {
	case IsCreditNote(no):
		return strings.TrimPrefix(no, PrefixCreditNote)
	case IsRefundNote(no):
		return strings.TrimPrefix(no, PrefixRefundNote)
	}
	return no
}

// CreditNoteNumber devuelve "CN-<original>".
func CreditNoteNumber(original string) string { return PrefixCreditNote + original }

// RefundNoteNumber devuelve "RN-<original>"; siempre sobre la factura original, nunca sobre la CN.
func RefundNoteNumber(original string) string { return PrefixRefundNote + OriginalNumber(original) }

// IsLiveStatus indica si un documento derivado en ese estado bloquea crear otro igual.
func IsLiveStatus(status string) bool {
	switch status {
	case StatusProcessing, StatusSubmitted, StatusValid, StatusRetry, StatusQueued:
		return true
	}
	return false
}

// IsDeletableStatus indica si la fila puede borrarse manualmente.
func IsDeletableStatus(status string) bool {
	switch status {
	case StatusFailed, StatusInvalid, StatusCancelled:
		return true
	}
	return false
}

// IsResubmittableStatus indica si la fila puede reconstruirse y reenviarse.
func IsResubmittableStatus(status string) bool {
	switch status {
	case StatusRetry, StatusFailed, StatusInvalid, StatusQueued:
		return true
	}
	return false
}

// IsEligibleOriginal indica si la fila puede originar una nota de crédito/reembolso.
func (r *InvoiceRecord) IsEligibleOriginal() bool {
	return r != nil && r.RemoteID != "" && (r.Status == StatusSubmitted || r.Status == StatusValid)
}

// IsSettled indica que la fila ya no debe volver a enviarse desde la cola.
func (r *InvoiceRecord) IsSettled() bool {
	switch r.Status {
	case StatusSubmitted, StatusValid, StatusCancelled:
		return true
	}
	return false
}

// DocumentKind devuelve el tipo de documento según el prefijo del número.
func (r *InvoiceRecord) DocumentKind() DocumentKind {
	switch {
	case IsCreditNote(r.DocumentNo):
		return KindCreditNote
	case IsRefundNote(r.DocumentNo):
		return KindRefundNote
	case IsTest(r.DocumentNo):
		return KindTest
	}
	return KindInvoice
}

// MapRemoteStatus normaliza el estado remoto (sin distinguir mayúsculas) al conjunto cerrado.
func MapRemoteStatus(remote string) string {
	switch s := strings.ToLower(strings.TrimSpace(remote)); s {
	case StatusValid, StatusInvalid, StatusSubmitted, StatusCancelled:
		return s
	}
	return StatusUnknown
}

// DocumentKind distingue las variantes del documento fiscal.
type DocumentKind string

const (
	KindInvoice    DocumentKind = "invoice"
	KindCreditNote DocumentKind = "credit_note"
	KindRefundNote DocumentKind = "refund_note"
	KindTest       DocumentKind = "test"
)

// ListFilter agrupa los filtros del listado del libro.
type ListFilter struct {
	Status string        // "" = todos
	Class  DocumentClass // "" = todos
	Limit  int
	Offset int
}

// DocumentClass filtra por familia de número de documento.
type DocumentClass string

const (
	ClassInvoices    DocumentClass = "invoices"
	ClassCreditNotes DocumentClass = "credit_notes"
	ClassRefundNotes DocumentClass = "refund_notes"
	ClassTests       DocumentClass = "tests"
)
