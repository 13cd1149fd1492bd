package billing

import (
	"context"
	"fmt"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
)

// CreateCreditNote emite "CN-<original>" sobre una factura enviada o válida.
// Rechaza si ya hay una nota de crédito vigente para esa factura.
func (l *Lifecycle) CreateCreditNote(ctx context.Context, originalNo string) (*entity.InvoiceRecord, error) {
	if originalNo == "" || entity.IsCreditNote(originalNo) || entity.IsRefundNote(originalNo) {
		return nil, fmt.Errorf("%w: %q no es una factura original", domain.ErrInvalidInput, originalNo)
	}
	orig, err := l.eligibleOriginal(ctx, originalNo)
	if err != nil {
		return nil, err
	}

	cnNo := entity.CreditNoteNumber(originalNo)
	var rec *entity.InvoiceRecord
	err = l.withDocumentLock(ctx, cnNo, func() error {
		existing, err := l.ledger.GetByDocumentNo(ctx, cnNo)
		if err != nil {
			return fmt.Errorf("credit note: buscar %s: %w", cnNo, err)
		}
		if existing != nil && entity.IsLiveStatus(existing.Status) {
			return domain.ErrDuplicateCreditNote
		}
		bc, orderRef, err := l.derivedContext(ctx, orig, entity.KindCreditNote, cnNo)
		if err != nil {
			return err
		}
		rec, err = l.submitLocked(ctx, bc, orderRef, existing != nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("document_no", cnNo).Str("original", originalNo).Str("status", rec.Status).Msg("nota de crédito emitida")
	return rec, nil
}

// CreateRefundNote emite "RN-<original>" a partir de la nota de crédito. La
// factura original (no la CN) debe estar enviada o válida. Si el envío queda
// submitted la CN pasa a refund_complete.
func (l *Lifecycle) CreateRefundNote(ctx context.Context, cnNo string) (*entity.InvoiceRecord, error) {
	if !entity.IsCreditNote(cnNo) {
		return nil, domain.ErrNotCreditNote
	}
	originalNo := entity.OriginalNumber(cnNo)
	orig, err := l.eligibleOriginal(ctx, originalNo)
	if err != nil {
		return nil, err
	}
	cn, err := l.ledger.GetByDocumentNo(ctx, cnNo)
	if err != nil {
		return nil, fmt.Errorf("refund note: buscar %s: %w", cnNo, err)
	}
	if cn == nil {
		return nil, fmt.Errorf("%w: nota de crédito %s", domain.ErrNotFound, cnNo)
	}

	rnNo := entity.RefundNoteNumber(originalNo)
	var rec *entity.InvoiceRecord
	err = l.withDocumentLock(ctx, rnNo, func() error {
		existing, err := l.ledger.GetByDocumentNo(ctx, rnNo)
		if err != nil {
			return fmt.Errorf("refund note: buscar %s: %w", rnNo, err)
		}
		if existing != nil && entity.IsLiveStatus(existing.Status) {
			return domain.ErrDuplicateRefundNote
		}
		bc, orderRef, err := l.derivedContext(ctx, orig, entity.KindRefundNote, rnNo)
		if err != nil {
			return err
		}
		rec, err = l.submitLocked(ctx, bc, orderRef, existing != nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("document_no", rnNo).Str("credit_note", cnNo).Str("status", rec.Status).Msg("nota de reembolso emitida")
	return rec, nil
}

// MarkRefundCompleteWithoutNote marca la CN como reembolsada fuera del sistema.
func (l *Lifecycle) MarkRefundCompleteWithoutNote(ctx context.Context, cnID int64) (*entity.InvoiceRecord, error) {
	cn, err := l.ledger.GetByID(ctx, cnID)
	if err != nil {
		return nil, fmt.Errorf("mark refund: buscar fila: %w", err)
	}
	if cn == nil {
		return nil, domain.ErrNotFound
	}
	if !entity.IsCreditNote(cn.DocumentNo) {
		return nil, domain.ErrNotCreditNote
	}
	if err := l.ledger.MarkRefundComplete(ctx, cn.DocumentNo); err != nil {
		return nil, fmt.Errorf("mark refund: %w", err)
	}
	cn.RefundComplete = true
	l.log.Info().Str("document_no", cn.DocumentNo).Msg("reembolso marcado sin nota")
	return cn, nil
}

// HandleOrderRefunded emite la nota de crédito cuando el comercio reembolsa un
// pedido cuya factura está enviada o válida. Devuelve (nil, nil) si no aplica.
func (l *Lifecycle) HandleOrderRefunded(ctx context.Context, orderID int64) (*entity.InvoiceRecord, error) {
	o, err := l.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order refunded: buscar pedido: %w", err)
	}
	if o == nil {
		return nil, domain.ErrNotFound
	}
	orig, err := l.ledger.GetByDocumentNo(ctx, o.Number)
	if err != nil {
		return nil, fmt.Errorf("order refunded: buscar factura: %w", err)
	}
	if !orig.IsEligibleOriginal() {
		return nil, nil
	}
	cn, err := l.ledger.GetByDocumentNo(ctx, entity.CreditNoteNumber(o.Number))
	if err != nil {
		return nil, fmt.Errorf("order refunded: buscar nota de crédito: %w", err)
	}
	if cn != nil && entity.IsLiveStatus(cn.Status) {
		return nil, nil
	}
	return l.CreateCreditNote(ctx, o.Number)
}

func (l *Lifecycle) eligibleOriginal(ctx context.Context, originalNo string) (*entity.InvoiceRecord, error) {
	orig, err := l.ledger.GetByDocumentNo(ctx, originalNo)
	if err != nil {
		return nil, fmt.Errorf("buscar factura original %s: %w", originalNo, err)
	}
	if orig == nil {
		return nil, fmt.Errorf("%w: factura %s", domain.ErrNotFound, originalNo)
	}
	if !orig.IsEligibleOriginal() {
		return nil, domain.ErrOriginalNotEligible
	}
	return orig, nil
}
