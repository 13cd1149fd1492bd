package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/ports"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/document"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/repository"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois/signer"
	"github.com/tikusl4ju/myinvoice-sync/pkg/logger"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

const defaultCancelReason = "Cancelled by merchant"

// Deps colaboradores del ciclo de vida. Metrics, Clock y Log son opcionales.
type Deps struct {
	Ledger    repository.LedgerRepository
	Certs     repository.CertificateRepository
	Orders    repository.OrderRepository
	Settings  *RuntimeSettings
	Transport myinvois.Transport
	Builder   DocumentBuilder
	Signer    DocumentSigner
	Locker    ports.Locker
	Metrics   ports.Metrics
	Clock     ports.Clock
	Log       *logger.Logger
}

// Lifecycle es la máquina de estados de los envíos:
// processing → submitted | retry; submitted → valid | invalid | cancelled | unknown;
// retry → processing | failed; queued → processing.
type Lifecycle struct {
	ledger    repository.LedgerRepository
	certs     repository.CertificateRepository
	orders    repository.OrderRepository
	settings  *RuntimeSettings
	transport myinvois.Transport
	builder   DocumentBuilder
	signer    DocumentSigner
	locker    ports.Locker
	metrics   ports.Metrics
	clock     ports.Clock
	cfg       LifecycleConfig
	log       *logger.Logger
}

// NewLifecycle construye el caso de uso inyectando sus dependencias.
func NewLifecycle(d Deps, cfg LifecycleConfig) *Lifecycle {
	l := &Lifecycle{
		ledger:    d.Ledger,
		certs:     d.Certs,
		orders:    d.Orders,
		settings:  d.Settings,
		transport: d.Transport,
		builder:   d.Builder,
		signer:    d.Signer,
		locker:    d.Locker,
		metrics:   d.Metrics,
		clock:     d.Clock,
		cfg:       cfg,
		log:       d.Log,
	}
	if l.metrics == nil {
		l.metrics = ports.NopMetrics{}
	}
	if l.clock == nil {
		l.clock = ports.SystemClock{}
	}
	if l.log == nil {
		l.log = logger.Nop()
	}
	l.log = l.log.Component("lifecycle")
	return l
}

// Config devuelve la configuración con que se construyó.
func (l *Lifecycle) Config() LifecycleConfig { return l.cfg }

// ── Envío ─────────────────────────────────────────────────────────────────────

// Submit arma, firma (si aplica) y envía el documento. Los fallos de transporte
// no se devuelven como error: quedan en el libro como retry.
func (l *Lifecycle) Submit(ctx context.Context, bc *myinvois.BuildContext, orderRef int64) (*entity.InvoiceRecord, error) {
	if bc == nil || bc.DocumentNo == "" {
		return nil, fmt.Errorf("%w: falta número de documento", domain.ErrInvalidInput)
	}
	var rec *entity.InvoiceRecord
	err := l.withDocumentLock(ctx, bc.DocumentNo, func() error {
		var err error
		rec, err = l.submitLocked(ctx, bc, orderRef, false)
		return err
	})
	return rec, err
}

// withDocumentLock garantiza un solo envío en curso por número de documento.
func (l *Lifecycle) withDocumentLock(ctx context.Context, documentNo string, fn func() error) error {
	lock, err := l.locker.Acquire(ctx, "doc:"+documentNo, l.cfg.lockTTL())
	if errors.Is(err, ports.ErrLockHeld) {
		return fmt.Errorf("%w: %s", domain.ErrSubmissionInFlight, documentNo)
	}
	if err != nil {
		return fmt.Errorf("lock de documento %s: %w", documentNo, err)
	}
	defer func() {
		if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
			l.log.Warn().Err(rerr).Str("document_no", documentNo).Msg("no se pudo liberar el lock del documento")
		}
	}()
	return fn()
}

// submitLocked asume el lock del documento tomado. fresh=true reinicia el
// contador de reintentos (documento derivado recreado tras un estado terminal).
func (l *Lifecycle) submitLocked(ctx context.Context, bc *myinvois.BuildContext, orderRef int64, fresh bool) (*entity.InvoiceRecord, error) {
	// ── 1. Fila existente: un reenvío conserva retry_count ───────────────────
	existing, err := l.ledger.GetByDocumentNo(ctx, bc.DocumentNo)
	if err != nil {
		return nil, fmt.Errorf("submit: buscar fila: %w", err)
	}
	rec := &entity.InvoiceRecord{DocumentNo: bc.DocumentNo}
	if existing != nil {
		*rec = *existing
	}
	if fresh {
		rec.RetryCount = 0
		rec.RefundComplete = false
		rec.RemoteID, rec.LongID = "", ""
	}
	if orderRef > 0 {
		rec.OrderRef = orderRef
	}

	// ── 2. Completar contexto con datos de configuración ─────────────────────
	if err := l.complete(ctx, bc); err != nil {
		return nil, err
	}

	// ── 3. Construir y firmar ─────────────────────────────────────────────────
	doc, err := l.builder.Build(bc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if bc.UBLVersion == catalog.UBLVersionSigned {
		l.signOrDemote(ctx, doc, bc.DocumentNo)
	} else {
		signer.Strip(doc)
	}

	// ── 4. Serializar y persistir en processing ──────────────────────────────
	sealed := document.Seal(doc)
	rec.DocumentHash = sealed.Hash
	rec.Payload = sealed.Base64
	rec.ItemClass = myinvois.ResolveBuyerIdentity(bc.Buyer, bc.ItemClass).ItemClass
	rec.Status = entity.StatusProcessing
	if err := l.ledger.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("submit: guardar processing: %w", err)
	}

	// ── 5. Transporte ─────────────────────────────────────────────────────────
	start := time.Now()
	res, terr := l.transport.Submit(ctx, sealed.Hash, bc.DocumentNo, sealed.Base64)
	l.metrics.TransportCall("submit", outcome(terr, statusOf(res)), time.Since(start))
	switch {
	case terr != nil:
		rec.Status = entity.StatusRetry
		rec.ResponseCode = 0
		rec.ResponseBody = terr.Error()
		l.log.Warn().Err(terr).Str("document_no", rec.DocumentNo).Msg("envío sin respuesta, queda en retry")
	case res.RemoteID != "":
		rec.Status = entity.StatusSubmitted
		rec.RemoteID = res.RemoteID
		rec.ResponseCode = res.StatusCode
		rec.ResponseBody = res.Body
		rec.RetryCount = 0
	default:
		rec.Status = entity.StatusRetry
		rec.ResponseCode = res.StatusCode
		rec.ResponseBody = res.Body
	}

	// ── 6. Persistir resultado ────────────────────────────────────────────────
	if err := l.ledger.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("submit: guardar resultado: %w", err)
	}
	l.metrics.SubmissionFinished(string(rec.DocumentKind()), rec.Status)
	l.log.Info().
		Str("document_no", rec.DocumentNo).
		Str("status", rec.Status).
		Str("remote_id", rec.RemoteID).
		Int("retry_count", rec.RetryCount).
		Msg("envío registrado")

	// Una nota de reembolso aceptada cierra la nota de crédito.
	if rec.Status == entity.StatusSubmitted && entity.IsRefundNote(rec.DocumentNo) {
		cnNo := entity.CreditNoteNumber(entity.OriginalNumber(rec.DocumentNo))
		if err := l.ledger.MarkRefundComplete(ctx, cnNo); err != nil {
			return rec, fmt.Errorf("submit: marcar reembolso de %s: %w", cnNo, err)
		}
	}
	return rec, nil
}

// complete rellena vendedor, industria, categoría, fecha y modo de firma.
func (l *Lifecycle) complete(ctx context.Context, bc *myinvois.BuildContext) error {
	bc.Seller = l.cfg.Seller
	if bc.Industry == "" {
		bc.Industry = l.cfg.Industry
	}
	if bc.TaxCategoryID == "" {
		bc.TaxCategoryID = l.cfg.TaxCategoryID
	}
	if bc.IssuedAt.IsZero() {
		bc.IssuedAt = l.clock.Now()
	}
	version, err := l.settings.UBLVersion(ctx)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	bc.UBLVersion = version
	return nil
}

// signOrDemote firma con el certificado activo. Si no hay material usable el
// documento sale sin firma y el modo vuelve a 1.0 para no fallar en cada envío.
func (l *Lifecycle) signOrDemote(ctx context.Context, doc *document.Node, documentNo string) {
	err := l.sign(ctx, doc)
	if err == nil {
		return
	}
	l.log.Error().Err(err).Str("document_no", documentNo).Msg("firma fallida, se envía sin firma y el modo vuelve a UBL 1.0")
	signer.Strip(doc)
	if serr := l.settings.SetUBLVersion(ctx, catalog.UBLVersionUnsigned); serr != nil {
		l.log.Error().Err(serr).Msg("no se pudo restablecer la versión UBL")
	}
}

func (l *Lifecycle) sign(ctx context.Context, doc *document.Node) error {
	cert, err := l.certs.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("certificado activo: %w", err)
	}
	if cert == nil {
		return domain.ErrCertificateRequired
	}
	material, err := signer.LoadPEM(cert.PEM)
	if err != nil {
		return err
	}
	if _, err := l.signer.Sign(doc, material); err != nil {
		return err
	}
	return nil
}

// ── Estado remoto ─────────────────────────────────────────────────────────────

// SyncStatus consulta el estado remoto y lo registra. Sin respuesta la fila
// queda igual. Una respuesta distinta de 200 conserva el estado pero se guarda
// el cuerpo; el código solo se guarda si es 4xx, así un 5xx deja la fila en la
// rotación de sincronización.
func (l *Lifecycle) SyncStatus(ctx context.Context, remoteID string) (*entity.InvoiceRecord, error) {
	rec, err := l.ledger.GetByRemoteID(ctx, remoteID)
	if err != nil {
		return nil, fmt.Errorf("sync: buscar fila: %w", err)
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}

	start := time.Now()
	res, terr := l.transport.GetStatus(ctx, remoteID)
	l.metrics.TransportCall("status", outcome(terr, statusOfStatus(res)), time.Since(start))
	if terr != nil {
		l.log.Warn().Err(terr).Str("remote_id", remoteID).Msg("consulta de estado sin respuesta")
		return rec, nil
	}
	if res.StatusCode != http.StatusOK {
		code := res.StatusCode
		if code >= http.StatusInternalServerError {
			code = rec.ResponseCode
		}
		if err := l.ledger.RecordStatusResponse(ctx, remoteID, code, res.Body); err != nil {
			return nil, fmt.Errorf("sync: guardar respuesta: %w", err)
		}
		rec.ResponseCode = code
		rec.ResponseBody = res.Body
		l.log.Warn().Int("code", res.StatusCode).Str("remote_id", remoteID).Str("document_no", rec.DocumentNo).Msg("consulta de estado rechazada")
		return rec, nil
	}

	status := entity.MapRemoteStatus(res.Status)
	if err := l.ledger.UpdateRemoteState(ctx, remoteID, status, res.LongID, res.StatusCode, res.Body); err != nil {
		return nil, fmt.Errorf("sync: guardar estado: %w", err)
	}
	rec.Status = status
	rec.ResponseCode = res.StatusCode
	rec.ResponseBody = res.Body
	if res.LongID != "" {
		rec.LongID = res.LongID
	}

	if rec.OrderRef == 0 && !entity.IsTest(rec.DocumentNo) {
		l.backfillOrderRef(ctx, rec)
	}
	l.log.Info().Str("document_no", rec.DocumentNo).Str("remote_id", remoteID).Str("status", status).Msg("estado sincronizado")
	return rec, nil
}

func (l *Lifecycle) backfillOrderRef(ctx context.Context, rec *entity.InvoiceRecord) {
	o, err := l.orders.FindByNumber(ctx, entity.OriginalNumber(rec.DocumentNo))
	if err != nil || o == nil {
		return
	}
	if err := l.ledger.SetOrderRef(ctx, rec.DocumentNo, o.ID); err != nil {
		l.log.Warn().Err(err).Str("document_no", rec.DocumentNo).Msg("no se pudo completar order_ref")
		return
	}
	rec.OrderRef = o.ID
}

// ── Cancelación ───────────────────────────────────────────────────────────────

// Cancel pide la cancelación. Un rechazo por plazo vencido se distingue del
// rechazo genérico para que el operador emita una nota de crédito.
func (l *Lifecycle) Cancel(ctx context.Context, remoteID, reason string) (*entity.InvoiceRecord, error) {
	rec, err := l.ledger.GetByRemoteID(ctx, remoteID)
	if err != nil {
		return nil, fmt.Errorf("cancel: buscar fila: %w", err)
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	if strings.TrimSpace(reason) == "" {
		reason = defaultCancelReason
	}

	start := time.Now()
	res, terr := l.transport.Cancel(ctx, remoteID, reason)
	l.metrics.TransportCall("cancel", outcome(terr, statusOfCancel(res)), time.Since(start))
	if terr != nil {
		l.log.Warn().Err(terr).Str("remote_id", remoteID).Msg("cancelación sin respuesta")
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, terr)
	}
	if !res.Accepted {
		if res.WindowElapsed() {
			return nil, domain.ErrCancellationWindowElapsed
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrCancellationRejected, res.Body)
	}

	if err := l.ledger.UpdateRemoteState(ctx, remoteID, entity.StatusCancelled, "", res.StatusCode, res.Body); err != nil {
		return nil, fmt.Errorf("cancel: guardar estado: %w", err)
	}
	rec.Status = entity.StatusCancelled
	rec.ResponseCode = res.StatusCode
	rec.ResponseBody = res.Body
	l.log.Info().Str("document_no", rec.DocumentNo).Str("remote_id", remoteID).Msg("documento cancelado")
	return rec, nil
}

// ── Consultas y administración ────────────────────────────────────────────────

// Get busca una fila por número de documento.
func (l *Lifecycle) Get(ctx context.Context, documentNo string) (*entity.InvoiceRecord, error) {
	rec, err := l.ledger.GetByDocumentNo(ctx, documentNo)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// List lista el libro con filtros de estado y familia de documento.
func (l *Lifecycle) List(ctx context.Context, f entity.ListFilter) ([]*entity.InvoiceRecord, int, error) {
	return l.ledger.List(ctx, f)
}

// Delete borra una fila; solo desde failed, invalid o cancelled.
func (l *Lifecycle) Delete(ctx context.Context, id int64) error {
	rec, err := l.ledger.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete: buscar fila: %w", err)
	}
	if rec == nil {
		return domain.ErrNotFound
	}
	if !entity.IsDeletableStatus(rec.Status) {
		return domain.ErrNotDeletable
	}
	if err := l.ledger.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	l.log.Info().Str("document_no", rec.DocumentNo).Str("status", rec.Status).Msg("fila eliminada")
	return nil
}

// ValidateTIN consulta al API si el TIN corresponde al documento de identidad.
func (l *Lifecycle) ValidateTIN(ctx context.Context, tin, idType, idValue string) (bool, error) {
	if tin == "" || idValue == "" || !catalog.ValidIDSchemes[idType] {
		return false, domain.ErrInvalidInput
	}
	start := time.Now()
	res, err := l.transport.ValidateTIN(ctx, tin, idType, idValue)
	code := 0
	if res != nil {
		code = res.StatusCode
	}
	l.metrics.TransportCall("validate_tin", outcome(err, code), time.Since(start))
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	return res.Valid, nil
}

// RefreshToken fuerza un token nuevo (inicio de cada pasada con filas).
func (l *Lifecycle) RefreshToken(ctx context.Context) error {
	return l.transport.RefreshToken(ctx)
}

// ShareURL devuelve el enlace público del portal para un documento validado.
func ShareURL(portalHost string, rec *entity.InvoiceRecord) (string, error) {
	if rec == nil || rec.Status != entity.StatusValid || rec.RemoteID == "" || rec.LongID == "" {
		return "", fmt.Errorf("%w: el documento aún no está validado", domain.ErrInvalidInput)
	}
	return fmt.Sprintf("%s/%s/share/%s", strings.TrimRight(portalHost, "/"), rec.RemoteID, rec.LongID), nil
}

// ── Métricas ──────────────────────────────────────────────────────────────────

func outcome(err error, code int) string {
	switch {
	case err != nil:
		return "no_response"
	case code >= 200 && code < 300:
		return "ok"
	}
	return "http_error"
}

func statusOf(r *myinvois.SubmitResult) int {
	if r == nil {
		return 0
	}
	return r.StatusCode
}

func statusOfStatus(r *myinvois.StatusResult) int {
	if r == nil {
		return 0
	}
	return r.StatusCode
}

func statusOfCancel(r *myinvois.CancelResult) int {
	if r == nil {
		return 0
	}
	return r.StatusCode
}
