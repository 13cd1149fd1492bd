package repository

import (
	"context"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
)

// LedgerRepository es el puerto de persistencia del libro de envíos.
// Las búsquedas devuelven (nil, nil) cuando la fila no existe.
type LedgerRepository interface {
	// Upsert inserta o actualiza la fila por document_no (nunca duplica) y rellena ID.
	Upsert(ctx context.Context, rec *entity.InvoiceRecord) error
	GetByDocumentNo(ctx context.Context, documentNo string) (*entity.InvoiceRecord, error)
	GetByID(ctx context.Context, id int64) (*entity.InvoiceRecord, error)
	GetByRemoteID(ctx context.Context, remoteID string) (*entity.InvoiceRecord, error)

	// UpdateRemoteState registra el resultado de una consulta de estado.
	UpdateRemoteState(ctx context.Context, remoteID, status, longID string, code int, body string) error
	SetStatusByRemoteID(ctx context.Context, remoteID, status string) error
	SetOrderRef(ctx context.Context, documentNo string, orderRef int64) error
	MarkRefundComplete(ctx context.Context, documentNo string) error
	ClearQueueToken(ctx context.Context, documentNo string) error
	// TouchQueued marca la fila como revisada por la pasada de cola sin enviarla.
	TouchQueued(ctx context.Context, documentNo string) error
	// RecordStatusResponse guarda una respuesta de estado sin cambiar el estado.
	RecordStatusResponse(ctx context.Context, remoteID string, code int, body string) error

	// IncrementRetry suma 1 a retry_count solo si la fila sigue en retry y
	// devuelve el nuevo valor; si no, domain.ErrStatusChanged.
	IncrementRetry(ctx context.Context, documentNo string) (int, error)
	// FailExhausted pasa a failed las filas retry con retry_count >= cap.
	FailExhausted(ctx context.Context, retryCap int) (int64, error)

	ListForSync(ctx context.Context, limit int) ([]*entity.InvoiceRecord, error)
	ListForRetry(ctx context.Context, retryCap, limit int) ([]*entity.InvoiceRecord, error)
	ListQueued(ctx context.Context, limit int) ([]*entity.InvoiceRecord, error)
	List(ctx context.Context, f entity.ListFilter) ([]*entity.InvoiceRecord, int, error)

	Delete(ctx context.Context, id int64) error
}
