// Package billingtest reúne dobles en memoria de los puertos del ciclo de vida
// para los tests de billing, scheduler y la API HTTP.
package billingtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/repository"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

// ──────────────────────────────────────────────────────────────────────────────
// Reloj
// ──────────────────────────────────────────────────────────────────────────────

// Clock reloj manual.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock crea el reloj en t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set fija la hora.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance adelanta la hora.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ──────────────────────────────────────────────────────────────────────────────
// Libro
// ──────────────────────────────────────────────────────────────────────────────

var _ repository.LedgerRepository = (*Ledger)(nil)

// Ledger libro en memoria. updated_at avanza un segundo por escritura para que
// el orden "más antiguo primero" sea determinista.
type Ledger struct {
	mu     sync.Mutex
	rows   map[string]*entity.InvoiceRecord
	nextID int64
	tick   time.Time
}

// NewLedger crea el libro vacío.
func NewLedger() *Ledger {
	return &Ledger{rows: map[string]*entity.InvoiceRecord{}, tick: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (l *Ledger) touch(rec *entity.InvoiceRecord) {
	l.tick = l.tick.Add(time.Second)
	rec.UpdatedAt = l.tick
}

func clone(rec *entity.InvoiceRecord) *entity.InvoiceRecord {
	cp := *rec
	if rec.QueueAt != nil {
		t := *rec.QueueAt
		cp.QueueAt = &t
	}
	if rec.QueueCheckedAt != nil {
		t := *rec.QueueCheckedAt
		cp.QueueCheckedAt = &t
	}
	return &cp
}

// Put inserta o reemplaza una fila tal cual (preparación de tests).
func (l *Ledger) Put(rec *entity.InvoiceRecord) *entity.InvoiceRecord {
	if err := l.Upsert(context.Background(), rec); err != nil {
		panic(err)
	}
	return rec
}

// Row devuelve una copia de la fila o nil.
func (l *Ledger) Row(documentNo string) *entity.InvoiceRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.rows[documentNo]; ok {
		return clone(r)
	}
	return nil
}

// Len cantidad de filas.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

func (l *Ledger) Upsert(_ context.Context, rec *entity.InvoiceRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.rows[rec.DocumentNo]
	if ok {
		rec.ID = cur.ID
		rec.CreatedAt = cur.CreatedAt
		if rec.OrderRef == 0 {
			rec.OrderRef = cur.OrderRef
		}
	} else {
		l.nextID++
		rec.ID = l.nextID
		rec.CreatedAt = l.tick
	}
	l.touch(rec)
	l.rows[rec.DocumentNo] = clone(rec)
	return nil
}

func (l *Ledger) GetByDocumentNo(_ context.Context, documentNo string) (*entity.InvoiceRecord, error) {
	return l.Row(documentNo), nil
}

func (l *Ledger) GetByID(_ context.Context, id int64) (*entity.InvoiceRecord, error) {
	return l.find(func(r *entity.InvoiceRecord) bool { return r.ID == id }), nil
}

func (l *Ledger) GetByRemoteID(_ context.Context, remoteID string) (*entity.InvoiceRecord, error) {
	return l.find(func(r *entity.InvoiceRecord) bool { return remoteID != "" && r.RemoteID == remoteID }), nil
}

func (l *Ledger) find(match func(*entity.InvoiceRecord) bool) *entity.InvoiceRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.rows {
		if match(r) {
			return clone(r)
		}
	}
	return nil
}

func (l *Ledger) update(match func(*entity.InvoiceRecord) bool, fn func(*entity.InvoiceRecord)) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.rows {
		if match(r) {
			fn(r)
			l.touch(r)
			n++
		}
	}
	return n
}

func byNo(no string) func(*entity.InvoiceRecord) bool {
	return func(r *entity.InvoiceRecord) bool { return r.DocumentNo == no }
}

func byRemote(id string) func(*entity.InvoiceRecord) bool {
	return func(r *entity.InvoiceRecord) bool { return id != "" && r.RemoteID == id }
}

func (l *Ledger) UpdateRemoteState(_ context.Context, remoteID, status, longID string, code int, body string) error {
	l.update(byRemote(remoteID), func(r *entity.InvoiceRecord) {
		r.Status, r.ResponseCode, r.ResponseBody = status, code, body
		if longID != "" {
			r.LongID = longID
		}
	})
	return nil
}

func (l *Ledger) RecordStatusResponse(_ context.Context, remoteID string, code int, body string) error {
	l.update(byRemote(remoteID), func(r *entity.InvoiceRecord) { r.ResponseCode, r.ResponseBody = code, body })
	return nil
}

func (l *Ledger) SetStatusByRemoteID(_ context.Context, remoteID, status string) error {
	l.update(byRemote(remoteID), func(r *entity.InvoiceRecord) { r.Status = status })
	return nil
}

func (l *Ledger) SetOrderRef(_ context.Context, documentNo string, orderRef int64) error {
	l.update(byNo(documentNo), func(r *entity.InvoiceRecord) { r.OrderRef = orderRef })
	return nil
}

func (l *Ledger) MarkRefundComplete(_ context.Context, documentNo string) error {
	l.update(byNo(documentNo), func(r *entity.InvoiceRecord) { r.RefundComplete = true })
	return nil
}

func (l *Ledger) ClearQueueToken(_ context.Context, documentNo string) error {
	l.update(byNo(documentNo), func(r *entity.InvoiceRecord) { r.QueueToken = "" })
	return nil
}

// TouchQueued no mueve updated_at, igual que la columna queue_checked_at.
func (l *Ledger) TouchQueued(_ context.Context, documentNo string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.rows[documentNo]; ok {
		l.tick = l.tick.Add(time.Second)
		t := l.tick
		r.QueueCheckedAt = &t
	}
	return nil
}

func (l *Ledger) IncrementRetry(_ context.Context, documentNo string) (int, error) {
	var n int
	match := func(r *entity.InvoiceRecord) bool { return r.DocumentNo == documentNo && r.Status == entity.StatusRetry }
	if l.update(match, func(r *entity.InvoiceRecord) { r.RetryCount++; n = r.RetryCount }) == 0 {
		return 0, fmt.Errorf("increment retry %s: %w", documentNo, domain.ErrStatusChanged)
	}
	return n, nil
}

func (l *Ledger) FailExhausted(_ context.Context, retryCap int) (int64, error) {
	n := l.update(func(r *entity.InvoiceRecord) bool {
		return r.Status == entity.StatusRetry && r.RetryCount >= retryCap
	}, func(r *entity.InvoiceRecord) { r.Status = entity.StatusFailed })
	return int64(n), nil
}

func (l *Ledger) selectRows(match func(*entity.InvoiceRecord) bool, less func(a, b *entity.InvoiceRecord) bool, limit int) []*entity.InvoiceRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*entity.InvoiceRecord
	for _, r := range l.rows {
		if match(r) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func oldestFirst(a, b *entity.InvoiceRecord) bool { return a.UpdatedAt.Before(b.UpdatedAt) }

func (l *Ledger) ListForSync(_ context.Context, limit int) ([]*entity.InvoiceRecord, error) {
	return l.selectRows(func(r *entity.InvoiceRecord) bool {
		return r.Status == entity.StatusSubmitted && r.ResponseCode == entity.ResponseCodeAccepted && r.RemoteID != ""
	}, oldestFirst, limit), nil
}

func (l *Ledger) ListForRetry(_ context.Context, retryCap, limit int) ([]*entity.InvoiceRecord, error) {
	return l.selectRows(func(r *entity.InvoiceRecord) bool {
		return r.Status == entity.StatusRetry && r.RetryCount < retryCap
	}, oldestFirst, limit), nil
}

func (l *Ledger) ListQueued(_ context.Context, limit int) ([]*entity.InvoiceRecord, error) {
	return l.selectRows(func(r *entity.InvoiceRecord) bool {
		return r.QueueToken != "" && (r.Status != entity.StatusQueued || catalog.IsQueueTokenFormat(r.QueueToken))
	}, func(a, b *entity.InvoiceRecord) bool {
		if c := compareNullsFirst(a.QueueCheckedAt, b.QueueCheckedAt); c != 0 {
			return c < 0
		}
		if c := compareNullsFirst(a.QueueAt, b.QueueAt); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	}, limit), nil
}

func compareNullsFirst(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func (l *Ledger) List(_ context.Context, f entity.ListFilter) ([]*entity.InvoiceRecord, int, error) {
	all := l.selectRows(func(r *entity.InvoiceRecord) bool {
		if f.Status != "" && r.Status != f.Status {
			return false
		}
		return matchClass(f.Class, r.DocumentNo)
	}, func(a, b *entity.InvoiceRecord) bool { return a.ID > b.ID }, 0)
	total := len(all)
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if f.Offset >= len(all) {
		return nil, total, nil
	}
	all = all[f.Offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func matchClass(c entity.DocumentClass, no string) bool {
	switch c {
	case entity.ClassCreditNotes:
		return entity.IsCreditNote(no)
	case entity.ClassRefundNotes:
		return entity.IsRefundNote(no)
	case entity.ClassTests:
		return entity.IsTest(no)
	case entity.ClassInvoices:
		return !entity.IsCreditNote(no) && !entity.IsRefundNote(no) && !entity.IsTest(no)
	}
	return true
}

func (l *Ledger) Delete(_ context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for no, r := range l.rows {
		if r.ID == id {
			delete(l.rows, no)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Certificados, ajustes y pedidos
// ──────────────────────────────────────────────────────────────────────────────

var _ repository.CertificateRepository = (*Certificates)(nil)

// Certificates almacén de certificados en memoria.
type Certificates struct {
	mu     sync.Mutex
	rows   []*entity.Certificate
	nextID int64
}

// NewCertificates crea el almacén vacío.
func NewCertificates() *Certificates { return &Certificates{} }

func (c *Certificates) Save(_ context.Context, cert *entity.Certificate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.rows {
		r.IsActive = false
	}
	c.nextID++
	cert.ID = c.nextID
	cert.IsActive = true
	cp := *cert
	c.rows = append(c.rows, &cp)
	return nil
}

func (c *Certificates) GetActive(_ context.Context) (*entity.Certificate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.rows {
		if r.IsActive {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (c *Certificates) GetByID(_ context.Context, id int64) (*entity.Certificate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (c *Certificates) List(_ context.Context) ([]*entity.Certificate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*entity.Certificate, 0, len(c.rows))
	for _, r := range c.rows {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (c *Certificates) Activate(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	found := false
	for _, r := range c.rows {
		r.IsActive = r.ID == id
		found = found || r.ID == id
	}
	if !found {
		return errors.New("certificado inexistente")
	}
	return nil
}

func (c *Certificates) Delete(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.rows[:0]
	for _, r := range c.rows {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	c.rows = kept
	return nil
}

func (c *Certificates) DeleteAll(_ context.Context) error {
	c.mu.Lock()
	c.rows = nil
	c.mu.Unlock()
	return nil
}

var _ repository.SettingsRepository = (*Settings)(nil)

// Settings almacén clave-valor en memoria.
type Settings struct {
	mu   sync.Mutex
	kv   map[string]string
	Fail error // si no es nil, Get devuelve este error
}

// NewSettings crea el almacén vacío.
func NewSettings() *Settings { return &Settings{kv: map[string]string{}} }

func (s *Settings) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return "", s.Fail
	}
	return s.kv[key], nil
}

func (s *Settings) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.kv[key] = value
	s.mu.Unlock()
	return nil
}

var _ repository.OrderRepository = (*Orders)(nil)

// Orders pedidos en memoria.
type Orders struct {
	mu   sync.Mutex
	byID map[int64]*entity.Order
}

// NewOrders crea el almacén con los pedidos dados.
func NewOrders(orders ...*entity.Order) *Orders {
	o := &Orders{byID: map[int64]*entity.Order{}}
	for _, ord := range orders {
		o.byID[ord.ID] = ord
	}
	return o
}

func (o *Orders) FindByID(_ context.Context, id int64) (*entity.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.byID[id], nil
}

func (o *Orders) FindByNumber(_ context.Context, number string) (*entity.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ord := range o.byID {
		if ord.Number == number {
			return ord, nil
		}
	}
	return nil, nil
}

func (o *Orders) Save(_ context.Context, order *entity.Order) error {
	o.mu.Lock()
	o.byID[order.ID] = order
	o.mu.Unlock()
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Transporte
// ──────────────────────────────────────────────────────────────────────────────

var _ myinvois.Transport = (*Transport)(nil)

// Submission envío registrado por el transporte falso.
type Submission struct {
	DocumentHash string
	DocumentNo   string
	Document     string
}

// Transport transporte programable. Sin funciones configuradas acepta todo:
// Submit devuelve UUID "R-<número>" con 202.
type Transport struct {
	mu sync.Mutex

	SubmitFn func(documentNo string) (*myinvois.SubmitResult, error)
	StatusFn func(remoteID string) (*myinvois.StatusResult, error)
	CancelFn func(remoteID string) (*myinvois.CancelResult, error)
	TINFn    func(tin, idType, idValue string) (*myinvois.TINResult, error)

	Submissions []Submission
	StatusCalls []string
	Refreshes   int
}

// NewTransport crea el transporte que acepta todo.
func NewTransport() *Transport { return &Transport{} }

func (t *Transport) Submit(_ context.Context, documentHash, documentNo, documentBase64 string) (*myinvois.SubmitResult, error) {
	t.mu.Lock()
	t.Submissions = append(t.Submissions, Submission{DocumentHash: documentHash, DocumentNo: documentNo, Document: documentBase64})
	fn := t.SubmitFn
	t.mu.Unlock()
	if fn != nil {
		return fn(documentNo)
	}
	return &myinvois.SubmitResult{RemoteID: "R-" + documentNo, StatusCode: 202, Body: `{"acceptedDocuments":[]}`}, nil
}

func (t *Transport) GetStatus(_ context.Context, remoteID string) (*myinvois.StatusResult, error) {
	t.mu.Lock()
	t.StatusCalls = append(t.StatusCalls, remoteID)
	fn := t.StatusFn
	t.mu.Unlock()
	if fn != nil {
		return fn(remoteID)
	}
	return &myinvois.StatusResult{Status: "Valid", LongID: "LONG-" + remoteID, StatusCode: 200, Body: `{"status":"Valid"}`}, nil
}

func (t *Transport) Cancel(_ context.Context, remoteID, _ string) (*myinvois.CancelResult, error) {
	t.mu.Lock()
	fn := t.CancelFn
	t.mu.Unlock()
	if fn != nil {
		return fn(remoteID)
	}
	return &myinvois.CancelResult{Accepted: true, StatusCode: 200, Body: `{"status":"Cancelled"}`}, nil
}

func (t *Transport) ValidateTIN(_ context.Context, tin, idType, idValue string) (*myinvois.TINResult, error) {
	t.mu.Lock()
	fn := t.TINFn
	t.mu.Unlock()
	if fn != nil {
		return fn(tin, idType, idValue)
	}
	return &myinvois.TINResult{Valid: strings.HasPrefix(tin, "IG"), StatusCode: 200}, nil
}

func (t *Transport) RefreshToken(context.Context) error {
	t.mu.Lock()
	t.Refreshes++
	t.mu.Unlock()
	return nil
}

// SubmittedNumbers números enviados, en orden.
func (t *Transport) SubmittedNumbers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.Submissions))
	for _, s := range t.Submissions {
		out = append(out, s.DocumentNo)
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Esperas
// ──────────────────────────────────────────────────────────────────────────────

// Sleeper registra las esperas pedidas sin dormir.
type Sleeper struct {
	mu    sync.Mutex
	Calls []time.Duration
}

func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.Calls = append(s.Calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Durations copia de las esperas registradas.
func (s *Sleeper) Durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.Calls...)
}
