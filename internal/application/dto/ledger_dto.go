package dto

import (
	"time"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
)

// Tamaño de página del listado del libro cuando no se pide uno.
const defaultListLimit = 20

// ErrorResponse cuerpo de error de toda la API: {code, message}.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ListRecordsRequest query de GET /api/documents.
type ListRecordsRequest struct {
	Status string `query:"status" validate:"omitempty,oneof=processing submitted valid invalid cancelled retry failed queued unknown"`
	Class  string `query:"class" validate:"omitempty,oneof=invoices credit_notes refund_notes tests"`
	Limit  int    `query:"limit" validate:"min=0,max=100"`
	Offset int    `query:"offset" validate:"min=0"`
}

// Filter traduce la query al filtro del libro; limit 0 pasa a 20.
func (r ListRecordsRequest) Filter() entity.ListFilter {
	f := entity.ListFilter{
		Status: r.Status,
		Class:  entity.DocumentClass(r.Class),
		Limit:  r.Limit,
		Offset: r.Offset,
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	return f
}

// RecordResponse fila del libro en respuestas.
type RecordResponse struct {
	ID             int64      `json:"id"`
	DocumentNo     string     `json:"document_no"`
	Kind           string     `json:"kind"`
	OrderRef       int64      `json:"order_ref,omitempty"`
	RemoteID       string     `json:"remote_id,omitempty"`
	LongID         string     `json:"long_id,omitempty"`
	ItemClass      string     `json:"item_class,omitempty"`
	DocumentHash   string     `json:"document_hash,omitempty"`
	Status         string     `json:"status"`
	ResponseCode   int        `json:"response_code,omitempty"`
	ResponseBody   string     `json:"response_body,omitempty"`
	RetryCount     int        `json:"retry_count"`
	QueueToken     string     `json:"queue_token,omitempty"`
	QueueAt        *time.Time `json:"queue_at,omitempty"`
	RefundComplete bool       `json:"refund_complete"`
	ShareURL       string     `json:"share_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewRecordResponse arma la respuesta; shareURL va vacío si el documento no es válido.
func NewRecordResponse(rec *entity.InvoiceRecord, shareURL string) RecordResponse {
	return RecordResponse{
		ID:             rec.ID,
		DocumentNo:     rec.DocumentNo,
		Kind:           string(rec.DocumentKind()),
		OrderRef:       rec.OrderRef,
		RemoteID:       rec.RemoteID,
		LongID:         rec.LongID,
		ItemClass:      rec.ItemClass,
		DocumentHash:   rec.DocumentHash,
		Status:         rec.Status,
		ResponseCode:   rec.ResponseCode,
		ResponseBody:   rec.ResponseBody,
		RetryCount:     rec.RetryCount,
		QueueToken:     rec.QueueToken,
		QueueAt:        rec.QueueAt,
		RefundComplete: rec.RefundComplete,
		ShareURL:       shareURL,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

// ListRecordsResponse página del libro.
type ListRecordsResponse struct {
	Items []RecordResponse `json:"items"`
	Page  ListPage         `json:"page"`
}

// ListPage límites aplicados y total sin paginar.
type ListPage struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// CancelRequest body de POST /api/documents/:no/cancel.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=300"`
}

// ValidateTINResponse resultado de la validación de un TIN.
type ValidateTINResponse struct {
	TIN     string `json:"tin"`
	IDType  string `json:"id_type"`
	IDValue string `json:"id_value"`
	Valid   bool   `json:"valid"`
}
