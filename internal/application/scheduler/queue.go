package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

// queuePass envía las filas en cola cuyo plazo venció (queue_at + días).
// Una fila ya enviada con token viejo solo se limpia. Toda fila que sigue en
// cola tras la revisión se marca para que el próximo lote tome otras.
func (s *Scheduler) queuePass(ctx context.Context, res *PassResult) error {
	rows, err := s.ledger.ListQueued(ctx, s.cfg.QueueBatch)
	if err != nil {
		return fmt.Errorf("queue: listar filas: %w", err)
	}
	res.Selected = len(rows)
	now := s.clock.Now()
	refreshed := false

	for _, row := range rows {
		if row.IsSettled() {
			if _, err := s.lifecycle.SubmitQueued(ctx, row); err != nil {
				res.Errors++
				s.touch(ctx, row)
				s.log.Warn().Err(err).Str("document_no", row.DocumentNo).Msg("queue: no se pudo limpiar el token")
				continue
			}
			res.Skipped++
			s.log.Info().Str("document_no", row.DocumentNo).Str("status", row.Status).Msg("queue: ya enviado, token limpiado")
			continue
		}

		tok, err := catalog.ParseQueueToken(row.QueueToken, s.cfg.Location)
		if err != nil {
			res.Errors++
			s.touch(ctx, row)
			s.log.Warn().Err(err).Str("document_no", row.DocumentNo).Msg("queue: token inválido")
			continue
		}
		if !tok.IsDue(row.QueueAt, now) {
			s.touch(ctx, row)
			continue
		}

		if !refreshed {
			s.refresh(ctx, PassQueue)
			refreshed = true
		}
		s.log.Info().
			Str("document_no", row.DocumentNo).
			Str("queue_token", row.QueueToken).
			Int("days", tok.Days).
			Time("due_at", tok.DueAt(row.QueueAt)).
			Msg("queue: plazo vencido, enviando")

		out, err := s.lifecycle.SubmitQueued(ctx, row)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			res.Skipped++
			s.touch(ctx, row)
			s.log.Warn().Str("document_no", row.DocumentNo).Msg("queue: pedido no encontrado, se intenta en la próxima pasada")
		case errors.Is(err, domain.ErrOrderSkipped):
			res.Skipped++
			s.log.Info().Str("document_no", row.DocumentNo).Msg("queue: pedido wallet omitido")
		case err != nil:
			res.Errors++
			s.touch(ctx, row)
			s.log.Warn().Err(err).Str("document_no", row.DocumentNo).Msg("queue: envío fallido")
		default:
			res.Processed++
			s.log.Info().Str("document_no", row.DocumentNo).Str("status", out.Status).Msg("queue: enviado")
		}

		if err := s.sleeper.Sleep(ctx, s.cfg.InterCallDelay); err != nil {
			return err
		}
	}
	return nil
}

// touch manda la fila al final de la rotación de la cola.
func (s *Scheduler) touch(ctx context.Context, row *entity.InvoiceRecord) {
	if err := s.ledger.TouchQueued(ctx, row.DocumentNo); err != nil {
		s.log.Warn().Err(err).Str("document_no", row.DocumentNo).Msg("queue: no se pudo marcar la revisión")
	}
}
