package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

// IsWalletPayment indica si el método de pago es una billetera (excluible).
func IsWalletPayment(method string) bool {
	return strings.Contains(strings.ToLower(method), "wallet")
}

// MapOrder convierte un pedido en el contexto de una factura.
//
//   - comprador con TIN validado: su TIN e identificación, clasificación 008;
//   - extranjero: TIN genérico extranjero, PASSPORT/NA, 008;
//   - local: TIN genérico local, NRIC/NA, 004.
//
// Envíos y comisiones solo suman si son > 0; el impuesto de comisiones cuenta,
// el de envíos no.
func MapOrder(o *entity.Order) *myinvois.BuildContext {
	bill, ship := o.Billing, o.Shipping
	country := bill.Country
	if country == "" {
		country = ship.Country
	}

	buyer := myinvois.Party{
		Name:  buyerName(bill),
		Email: bill.Email,
		Phone: catalog.FirstPhone(bill.Phone, ship.Phone),
		Address: myinvois.PartyAddress{
			Line1:     strings.TrimSpace(bill.Address1 + " " + bill.Address2),
			City:      bill.City,
			Postcode:  bill.Postcode,
			StateCode: catalog.StateCode(bill.State),
			Country:   catalog.CountryISO3(country),
		},
	}
	if buyer.Address.City == "" {
		buyer.Address.City = country
	}

	var itemClass string
	switch {
	case o.Buyer.HasTIN():
		buyer.TIN, buyer.IDType, buyer.IDValue = o.Buyer.TIN, o.Buyer.IDType, o.Buyer.IDValue
		itemClass = catalog.ClassECommerce
	case country != "" && !catalog.IsMalaysia(country):
		buyer.TIN, buyer.IDType, buyer.IDValue = catalog.TINGenericForeign, catalog.IDSchemePassport, catalog.NotApplicable
		itemClass = catalog.ClassECommerce
	default:
		buyer.TIN, buyer.IDType, buyer.IDValue = catalog.TINGenericLocal, catalog.IDSchemeNRIC, catalog.NotApplicable
		itemClass = catalog.ClassConsolidated
	}

	var (
		lines []myinvois.Line
		total = decimal.Zero
		tax   = decimal.Zero
		one   = decimal.NewFromInt(1)
	)
	add := func(desc string, qty, unit decimal.Decimal) {
		lines = append(lines, myinvois.Line{
			ID:          strconv.Itoa(len(lines) + 1),
			Quantity:    qty,
			UnitPrice:   unit,
			Description: desc,
		})
	}
	for _, it := range o.Items {
		div := decimal.Max(it.Quantity, one)
		add(it.Name, it.Quantity, it.Total.Div(div).Round(2))
		total = total.Add(it.Total)
		tax = tax.Add(it.Tax)
	}
	for _, s := range o.ShippingLines {
		if !s.Total.IsPositive() {
			continue
		}
		add(orDefault(s.Name, "Shipping"), one, s.Total)
		total = total.Add(s.Total)
	}
	for _, f := range o.FeeLines {
		if !f.Total.IsPositive() {
			continue
		}
		add(orDefault(f.Name, "Fee"), one, f.Total)
		total = total.Add(f.Total)
		tax = tax.Add(f.Tax)
	}

	return &myinvois.BuildContext{
		Kind:       entity.KindInvoice,
		DocumentNo: o.Number,
		Buyer:      buyer,
		ItemClass:  itemClass,
		Lines:      lines,
		Total:      total,
		TaxAmount:  tax,
	}
}

func buyerName(a entity.Address) string {
	if c := strings.TrimSpace(a.Company); c != "" {
		return c
	}
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// ── Pedidos ───────────────────────────────────────────────────────────────────

// SubmitOrder envía la factura de un pedido completado, o la deja en cola si
// el ciclo de facturación es "after_N_days". Una fila ya enviada se devuelve tal cual.
func (l *Lifecycle) SubmitOrder(ctx context.Context, o *entity.Order) (*entity.InvoiceRecord, error) {
	if o == nil || o.Number == "" {
		return nil, domain.ErrInvalidInput
	}
	if l.cfg.ExcludeWallet && IsWalletPayment(o.PaymentMethod) {
		l.log.Info().Str("document_no", o.Number).Str("payment_method", o.PaymentMethod).Msg("pedido wallet excluido")
		return nil, domain.ErrOrderSkipped
	}

	existing, err := l.ledger.GetByDocumentNo(ctx, o.Number)
	if err != nil {
		return nil, fmt.Errorf("submit order: buscar fila: %w", err)
	}
	if existing != nil && existing.IsSettled() {
		return existing, nil
	}

	if days, ok := l.cfg.QueueDays(); ok {
		return l.queue(ctx, o, days, existing)
	}
	return l.Submit(ctx, MapOrder(o), o.ID)
}

// queue deja la fila en queued con el token q<días><ddmmyy>. Un pedido que ya
// está en cola conserva su token y su fecha.
func (l *Lifecycle) queue(ctx context.Context, o *entity.Order, days int, existing *entity.InvoiceRecord) (*entity.InvoiceRecord, error) {
	if existing != nil && existing.Status == entity.StatusQueued && existing.QueueToken != "" {
		return existing, nil
	}
	now := l.clock.Now().In(l.cfg.location())
	tok, err := catalog.NewQueueToken(days, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidQueueToken, err)
	}

	rec := &entity.InvoiceRecord{DocumentNo: o.Number}
	if existing != nil {
		*rec = *existing
	}
	rec.OrderRef = o.ID
	rec.Status = entity.StatusQueued
	rec.QueueToken = tok.String()
	rec.QueueAt = &now
	if err := l.ledger.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("queue: guardar fila: %w", err)
	}
	l.log.Info().Str("document_no", rec.DocumentNo).Str("queue_token", rec.QueueToken).Msg("pedido en cola")
	return rec, nil
}

// SubmitQueued envía una fila en cola cuyo plazo ya venció y limpia el token.
// Un pedido que ya no existe deja el token para la próxima pasada.
func (l *Lifecycle) SubmitQueued(ctx context.Context, rec *entity.InvoiceRecord) (*entity.InvoiceRecord, error) {
	if rec.IsSettled() {
		return rec, l.clearToken(ctx, rec)
	}
	o, err := l.findOrder(ctx, rec.OrderRef, rec.DocumentNo)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: pedido %s", domain.ErrNotFound, rec.DocumentNo)
	}
	if l.cfg.ExcludeWallet && IsWalletPayment(o.PaymentMethod) {
		if err := l.clearToken(ctx, rec); err != nil {
			return nil, err
		}
		return nil, domain.ErrOrderSkipped
	}

	out, err := l.Submit(ctx, MapOrder(o), o.ID)
	if err != nil {
		return nil, err
	}
	return out, l.clearToken(ctx, out)
}

func (l *Lifecycle) clearToken(ctx context.Context, rec *entity.InvoiceRecord) error {
	if err := l.ledger.ClearQueueToken(ctx, rec.DocumentNo); err != nil {
		return fmt.Errorf("limpiar token de cola de %s: %w", rec.DocumentNo, err)
	}
	rec.QueueToken = ""
	return nil
}

// findOrder busca por referencia y, si no hay, por número visible (índice único).
func (l *Lifecycle) findOrder(ctx context.Context, orderRef int64, number string) (*entity.Order, error) {
	if orderRef > 0 {
		o, err := l.orders.FindByID(ctx, orderRef)
		if err != nil {
			return nil, fmt.Errorf("buscar pedido %d: %w", orderRef, err)
		}
		if o != nil {
			return o, nil
		}
	}
	o, err := l.orders.FindByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("buscar pedido %s: %w", number, err)
	}
	return o, nil
}

// ── Reenvío ───────────────────────────────────────────────────────────────────

// Resubmit reconstruye y reenvía una fila existente (pasada de reintentos y
// reenvío manual). La fila se relee bajo el lock del documento: si otro envío
// ya la sacó de retry/failed/invalid/queued devuelve domain.ErrStatusChanged
// sin tocar el API.
//
//   - TEST-: desde su payload; si no se puede leer, con los datos fijos de prueba.
//   - CN-/RN-: desde la factura original, con la misma referencia.
//   - resto: desde el pedido, con el payload como respaldo.
func (l *Lifecycle) Resubmit(ctx context.Context, rec *entity.InvoiceRecord) (*entity.InvoiceRecord, error) {
	var out *entity.InvoiceRecord
	err := l.withDocumentLock(ctx, rec.DocumentNo, func() error {
		// ── 1. Releer la fila bajo el lock ───────────────────────────────────
		cur, err := l.ledger.GetByDocumentNo(ctx, rec.DocumentNo)
		if err != nil {
			return fmt.Errorf("resubmit: releer fila: %w", err)
		}
		if cur == nil {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, rec.DocumentNo)
		}
		if !entity.IsResubmittableStatus(cur.Status) {
			return fmt.Errorf("%w: %s está en %s", domain.ErrStatusChanged, cur.DocumentNo, cur.Status)
		}

		// ── 2. Reconstruir y enviar ──────────────────────────────────────────
		bc, orderRef, err := l.resubmitContext(ctx, cur)
		if err != nil {
			return err
		}
		out, err = l.submitLocked(ctx, bc, orderRef, false)
		return err
	})
	return out, err
}

func (l *Lifecycle) resubmitContext(ctx context.Context, rec *entity.InvoiceRecord) (*myinvois.BuildContext, int64, error) {
	var (
		bc       *myinvois.BuildContext
		orderRef int64
		err      error
	)
	switch kind := rec.DocumentKind(); kind {
	case entity.KindTest:
		bc, err = myinvois.ReadPayload(rec.Payload)
		if err != nil {
			l.log.Warn().Err(err).Str("document_no", rec.DocumentNo).Msg("payload de prueba ilegible, se usan los datos fijos")
			bc, err = TestContext(rec.DocumentNo), nil
		}
	case entity.KindCreditNote, entity.KindRefundNote:
		orig, gerr := l.ledger.GetByDocumentNo(ctx, entity.OriginalNumber(rec.DocumentNo))
		if gerr != nil {
			return nil, 0, fmt.Errorf("resubmit: buscar original: %w", gerr)
		}
		if !orig.IsEligibleOriginal() {
			return nil, 0, domain.ErrOriginalNotEligible
		}
		bc, orderRef, err = l.derivedContext(ctx, orig, kind, rec.DocumentNo)
	default:
		bc, orderRef, err = l.sourceContext(ctx, rec)
	}
	if err != nil {
		return nil, 0, err
	}
	bc.Kind = rec.DocumentKind()
	bc.DocumentNo = rec.DocumentNo
	return bc, orderRef, nil
}

// sourceContext obtiene comprador y líneas de una fila: pedido primero, payload
// guardado después. Las filas de prueba van directo al payload.
func (l *Lifecycle) sourceContext(ctx context.Context, rec *entity.InvoiceRecord) (*myinvois.BuildContext, int64, error) {
	if !entity.IsTest(rec.DocumentNo) {
		o, err := l.findOrder(ctx, rec.OrderRef, entity.OriginalNumber(rec.DocumentNo))
		if err != nil {
			return nil, 0, err
		}
		if o != nil {
			return MapOrder(o), o.ID, nil
		}
	}
	if rec.Payload == "" {
		return nil, 0, fmt.Errorf("%w: %s sin pedido ni payload", domain.ErrNotFound, rec.DocumentNo)
	}
	bc, err := myinvois.ReadPayload(rec.Payload)
	if err != nil {
		return nil, 0, fmt.Errorf("leer payload de %s: %w", rec.DocumentNo, err)
	}
	if bc.ItemClass == "" {
		bc.ItemClass = rec.ItemClass
	}
	return bc, rec.OrderRef, nil
}

// derivedContext arma el contexto de una nota sobre la factura original.
func (l *Lifecycle) derivedContext(ctx context.Context, orig *entity.InvoiceRecord, kind entity.DocumentKind, documentNo string) (*myinvois.BuildContext, int64, error) {
	bc, orderRef, err := l.sourceContext(ctx, orig)
	if err != nil {
		return nil, 0, err
	}
	bc.Kind = kind
	bc.DocumentNo = documentNo
	bc.Reference = &myinvois.Reference{DocumentNo: orig.DocumentNo, RemoteID: orig.RemoteID}
	return bc, orderRef, nil
}
