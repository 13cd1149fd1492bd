package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/repository"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo implementación del libro de envíos (usable con pool o tx).
type LedgerRepo struct {
	q Querier
}

// NewLedgerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLedgerRepository(q Querier) *LedgerRepo {
	return &LedgerRepo{q: q}
}

const ledgerColumns = `id, document_no, order_ref, remote_id, long_id, item_class, document_hash, payload,
	status, response_code, response_body, retry_count, queue_token, queue_at, queue_checked_at,
	refund_complete, created_at, updated_at`

// Upsert inserta o actualiza la fila por document_no.
func (r *LedgerRepo) Upsert(ctx context.Context, rec *entity.InvoiceRecord) error {
	query := `
		INSERT INTO invoice_records (document_no, order_ref, remote_id, long_id, item_class, document_hash,
		                             payload, status, response_code, response_body, retry_count,
		                             queue_token, queue_at, refund_complete, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		ON CONFLICT (document_no) DO UPDATE
		SET order_ref       = COALESCE(EXCLUDED.order_ref, invoice_records.order_ref),
		    remote_id       = EXCLUDED.remote_id,
		    long_id         = EXCLUDED.long_id,
		    item_class      = EXCLUDED.item_class,
		    document_hash   = EXCLUDED.document_hash,
		    payload         = EXCLUDED.payload,
		    status          = EXCLUDED.status,
		    response_code   = EXCLUDED.response_code,
		    response_body   = EXCLUDED.response_body,
		    retry_count     = EXCLUDED.retry_count,
		    queue_token     = EXCLUDED.queue_token,
		    queue_at        = EXCLUDED.queue_at,
		    refund_complete = EXCLUDED.refund_complete,
		    updated_at      = NOW()
		RETURNING id, created_at, updated_at`
	err := r.q.QueryRow(ctx, query,
		rec.DocumentNo, nullIfZero(rec.OrderRef), nullIfEmpty(rec.RemoteID), nullIfEmpty(rec.LongID),
		nullIfEmpty(rec.ItemClass), nullIfEmpty(rec.DocumentHash), nullIfEmpty(rec.Payload),
		rec.Status, nullIfZeroInt(rec.ResponseCode), nullIfEmpty(rec.ResponseBody), rec.RetryCount,
		nullIfEmpty(rec.QueueToken), rec.QueueAt, rec.RefundComplete,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert invoice record %s: %w", rec.DocumentNo, err)
	}
	return nil
}

// GetByDocumentNo busca por número de documento. (nil, nil) si no existe.
func (r *LedgerRepo) GetByDocumentNo(ctx context.Context, documentNo string) (*entity.InvoiceRecord, error) {
	return r.getOne(ctx, `SELECT `+ledgerColumns+` FROM invoice_records WHERE document_no = $1`, documentNo)
}

// GetByID busca por id interno.
func (r *LedgerRepo) GetByID(ctx context.Context, id int64) (*entity.InvoiceRecord, error) {
	return r.getOne(ctx, `SELECT `+ledgerColumns+` FROM invoice_records WHERE id = $1`, id)
}

// GetByRemoteID busca por UUID remoto.
func (r *LedgerRepo) GetByRemoteID(ctx context.Context, remoteID string) (*entity.InvoiceRecord, error) {
	return r.getOne(ctx, `SELECT `+ledgerColumns+` FROM invoice_records WHERE remote_id = $1 LIMIT 1`, remoteID)
}

func (r *LedgerRepo) getOne(ctx context.Context, query string, arg any) (*entity.InvoiceRecord, error) {
	rec, err := scanRecord(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice record: %w", err)
	}
	return rec, nil
}

// UpdateRemoteState guarda el resultado de una consulta de estado.
func (r *LedgerRepo) UpdateRemoteState(ctx context.Context, remoteID, status, longID string, code int, body string) error {
	query := `
		UPDATE invoice_records
		SET status        = $2,
		    long_id       = COALESCE($3, long_id),
		    response_code = $4,
		    response_body = $5,
		    updated_at    = NOW()
		WHERE remote_id = $1`
	if _, err := r.q.Exec(ctx, query, remoteID, status, nullIfEmpty(longID), nullIfZeroInt(code), nullIfEmpty(body)); err != nil {
		return fmt.Errorf("update remote state %s: %w", remoteID, err)
	}
	return nil
}

// RecordStatusResponse guarda código y cuerpo de una consulta de estado sin
// tocar el estado.
func (r *LedgerRepo) RecordStatusResponse(ctx context.Context, remoteID string, code int, body string) error {
	query := `
		UPDATE invoice_records
		SET response_code = $2,
		    response_body = $3,
		    updated_at    = NOW()
		WHERE remote_id = $1`
	if _, err := r.q.Exec(ctx, query, remoteID, nullIfZeroInt(code), nullIfEmpty(body)); err != nil {
		return fmt.Errorf("record status response %s: %w", remoteID, err)
	}
	return nil
}

// SetStatusByRemoteID cambia solo el estado.
func (r *LedgerRepo) SetStatusByRemoteID(ctx context.Context, remoteID, status string) error {
	_, err := r.q.Exec(ctx, `UPDATE invoice_records SET status = $2, updated_at = NOW() WHERE remote_id = $1`, remoteID, status)
	if err != nil {
		return fmt.Errorf("set status %s: %w", remoteID, err)
	}
	return nil
}

// SetOrderRef vincula la fila con su pedido.
func (r *LedgerRepo) SetOrderRef(ctx context.Context, documentNo string, orderRef int64) error {
	_, err := r.q.Exec(ctx, `UPDATE invoice_records SET order_ref = $2, updated_at = NOW() WHERE document_no = $1`, documentNo, orderRef)
	if err != nil {
		return fmt.Errorf("set order ref %s: %w", documentNo, err)
	}
	return nil
}

// MarkRefundComplete marca la nota de crédito como reembolsada.
func (r *LedgerRepo) MarkRefundComplete(ctx context.Context, documentNo string) error {
	_, err := r.q.Exec(ctx, `UPDATE invoice_records SET refund_complete = TRUE, updated_at = NOW() WHERE document_no = $1`, documentNo)
	if err != nil {
		return fmt.Errorf("mark refund complete %s: %w", documentNo, err)
	}
	return nil
}

// ClearQueueToken quita el token de cola una vez enviado el documento.
func (r *LedgerRepo) ClearQueueToken(ctx context.Context, documentNo string) error {
	_, err := r.q.Exec(ctx, `UPDATE invoice_records SET queue_token = NULL, updated_at = NOW() WHERE document_no = $1`, documentNo)
	if err != nil {
		return fmt.Errorf("clear queue token %s: %w", documentNo, err)
	}
	return nil
}

// IncrementRetry suma un intento y devuelve el nuevo contador. Solo avanza
// mientras la fila siga en retry.
func (r *LedgerRepo) IncrementRetry(ctx context.Context, documentNo string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		UPDATE invoice_records SET retry_count = retry_count + 1, updated_at = NOW()
		WHERE document_no = $1 AND status = $2
		RETURNING retry_count`, documentNo, entity.StatusRetry).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("increment retry %s: %w", documentNo, domain.ErrStatusChanged)
	}
	if err != nil {
		return 0, fmt.Errorf("increment retry %s: %w", documentNo, err)
	}
	return n, nil
}

// FailExhausted pasa a failed las filas en retry que alcanzaron el tope.
func (r *LedgerRepo) FailExhausted(ctx context.Context, retryCap int) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE invoice_records SET status = $1, updated_at = NOW()
		WHERE status = $2 AND retry_count >= $3`, entity.StatusFailed, entity.StatusRetry, retryCap)
	if err != nil {
		return 0, fmt.Errorf("fail exhausted: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListForSync filas aceptadas (202) con UUID, las más antiguas primero.
func (r *LedgerRepo) ListForSync(ctx context.Context, limit int) ([]*entity.InvoiceRecord, error) {
	return r.list(ctx, `SELECT `+ledgerColumns+` FROM invoice_records
		WHERE status = $1 AND response_code = $2 AND remote_id IS NOT NULL
		ORDER BY updated_at ASC LIMIT $3`, entity.StatusSubmitted, entity.ResponseCodeAccepted, limit)
}

// ListForRetry filas en retry por debajo del tope.
func (r *LedgerRepo) ListForRetry(ctx context.Context, retryCap, limit int) ([]*entity.InvoiceRecord, error) {
	return r.list(ctx, `SELECT `+ledgerColumns+` FROM invoice_records
		WHERE status = $1 AND retry_count < $2
		ORDER BY updated_at ASC LIMIT $3`, entity.StatusRetry, retryCap, limit)
}

// ListQueued filas con token de cola, incluidas las ya enviadas con token
// pendiente de limpiar. Las filas en cola con token malformado no se
// seleccionan; las revisadas hace menos tiempo van al final para que el lote
// rote sobre toda la cola.
func (r *LedgerRepo) ListQueued(ctx context.Context, limit int) ([]*entity.InvoiceRecord, error) {
	return r.list(ctx, `SELECT `+ledgerColumns+` FROM invoice_records
		WHERE queue_token IS NOT NULL AND (status <> $1 OR queue_token ~ $2)
		ORDER BY queue_checked_at ASC NULLS FIRST, queue_at ASC NULLS FIRST, id ASC LIMIT $3`,
		entity.StatusQueued, catalog.QueueTokenPattern, limit)
}

// TouchQueued registra que la pasada de cola revisó la fila sin enviarla.
func (r *LedgerRepo) TouchQueued(ctx context.Context, documentNo string) error {
	_, err := r.q.Exec(ctx, `UPDATE invoice_records SET queue_checked_at = NOW() WHERE document_no = $1`, documentNo)
	if err != nil {
		return fmt.Errorf("touch queued %s: %w", documentNo, err)
	}
	return nil
}

// List listado paginado para el panel. Devuelve también el total sin paginar.
func (r *LedgerRepo) List(ctx context.Context, f entity.ListFilter) ([]*entity.InvoiceRecord, int, error) {
	where, args := listWhere(f)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM invoice_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoice records: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM invoice_records%s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		ledgerColumns, where, len(args)-1, len(args))
	recs, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// listWhere arma el WHERE según estado y familia de número.
func listWhere(f entity.ListFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	switch f.Class {
	case entity.ClassCreditNotes:
		conds = append(conds, "document_no LIKE 'CN-%'")
	case entity.ClassRefundNotes:
		conds = append(conds, "document_no LIKE 'RN-%'")
	case entity.ClassTests:
		conds = append(conds, "document_no LIKE 'TEST-%'")
	case entity.ClassInvoices:
		conds = append(conds, "document_no NOT LIKE 'CN-%' AND document_no NOT LIKE 'RN-%' AND document_no NOT LIKE 'TEST-%'")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Delete borra la fila por id.
func (r *LedgerRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM invoice_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete invoice record %d: %w", id, err)
	}
	return nil
}

func (r *LedgerRepo) list(ctx context.Context, query string, args ...any) ([]*entity.InvoiceRecord, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoice records: %w", err)
	}
	defer rows.Close()

	var out []*entity.InvoiceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*entity.InvoiceRecord, error) {
	var rec entity.InvoiceRecord
	var orderRef *int64
	var code *int
	var remoteID, longID, itemClass, hash, payload, body, token *string
	err := row.Scan(
		&rec.ID, &rec.DocumentNo, &orderRef, &remoteID, &longID, &itemClass, &hash, &payload,
		&rec.Status, &code, &body, &rec.RetryCount, &token, &rec.QueueAt, &rec.QueueCheckedAt, &rec.RefundComplete,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if orderRef != nil {
		rec.OrderRef = *orderRef
	}
	if code != nil {
		rec.ResponseCode = *code
	}
	rec.RemoteID, rec.LongID, rec.ItemClass = deref(remoteID), deref(longID), deref(itemClass)
	rec.DocumentHash, rec.Payload, rec.ResponseBody = deref(hash), deref(payload), deref(body)
	rec.QueueToken = deref(token)
	return &rec, nil
}

func nullIfZeroInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
