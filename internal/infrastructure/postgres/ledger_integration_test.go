//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/postgres"
	"github.com/tikusl4ju/myinvoice-sync/pkg/config"
	"github.com/tikusl4ju/myinvoice-sync/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Base de datos efímera
// ──────────────────────────────────────────────────────────────────────────────

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("myinvois_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "no se pudo levantar PostgreSQL")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	mg, err := postgres.NewMigrator(dsn, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, mg.Up())
	require.NoError(t, mg.Up(), "aplicar dos veces no debe fallar")
	require.NoError(t, mg.Close())

	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: dsn})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// ──────────────────────────────────────────────────────────────────────────────
// Libro de envíos
// ──────────────────────────────────────────────────────────────────────────────

func TestLedger_UpsertNoDuplicaYConservaID(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewLedgerRepository(newTestPool(t))

	rec := &entity.InvoiceRecord{DocumentNo: "1001", OrderRef: 55, Status: entity.StatusProcessing}
	require.NoError(t, repo.Upsert(ctx, rec))
	firstID := rec.ID

	rec.Status = entity.StatusSubmitted
	rec.RemoteID = "R-1"
	rec.ResponseCode = entity.ResponseCodeAccepted
	require.NoError(t, repo.Upsert(ctx, rec))
	assert.Equal(t, firstID, rec.ID, "el upsert por número debe reutilizar la fila")

	got, err := repo.GetByRemoteID(ctx, "R-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1001", got.DocumentNo)
	assert.Equal(t, int64(55), got.OrderRef)

	_, total, err := repo.List(ctx, entity.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestLedger_GetInexistenteDevuelveNil(t *testing.T) {
	repo := postgres.NewLedgerRepository(newTestPool(t))
	got, err := repo.GetByDocumentNo(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLedger_ConsultasDelPlanificador(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewLedgerRepository(newTestPool(t))

	queuedAt := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	rows := []*entity.InvoiceRecord{
		{DocumentNo: "A", Status: entity.StatusSubmitted, RemoteID: "R-A", ResponseCode: 202},
		{DocumentNo: "B", Status: entity.StatusSubmitted, ResponseCode: 202},
		{DocumentNo: "C", Status: entity.StatusRetry, RetryCount: 1},
		{DocumentNo: "D", Status: entity.StatusRetry, RetryCount: 3},
		{DocumentNo: "E", Status: entity.StatusQueued, QueueToken: "q2100124", QueueAt: &queuedAt},
	}
	for _, r := range rows {
		require.NoError(t, repo.Upsert(ctx, r))
	}

	sync, err := repo.ListForSync(ctx, 5)
	require.NoError(t, err)
	require.Len(t, sync, 1, "solo filas 202 con UUID")
	assert.Equal(t, "A", sync[0].DocumentNo)

	retry, err := repo.ListForRetry(ctx, 3, 5)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, "C", retry[0].DocumentNo)

	n, err := repo.IncrementRetry(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	failed, err := repo.FailExhausted(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), failed, "D alcanzó el tope")

	queued, err := repo.ListQueued(ctx, 20)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	require.NotNil(t, queued[0].QueueAt)
	assert.True(t, queued[0].QueueAt.Equal(queuedAt))

	require.NoError(t, repo.ClearQueueToken(ctx, "E"))
	queued, err = repo.ListQueued(ctx, 20)
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestLedger_IncrementRetrySoloAvanzaEnRetry(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewLedgerRepository(newTestPool(t))
	require.NoError(t, repo.Upsert(ctx, &entity.InvoiceRecord{DocumentNo: "S-1", Status: entity.StatusSubmitted, RetryCount: 1}))

	_, err := repo.IncrementRetry(ctx, "S-1")
	require.ErrorIs(t, err, domain.ErrStatusChanged)

	rec, err := repo.GetByDocumentNo(ctx, "S-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.RetryCount, "retry_count no cambia fuera de retry")
}

func TestLedger_ListQueuedRotaYDescartaTokensMalformados(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewLedgerRepository(newTestPool(t))

	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(48 * time.Hour)
	for _, r := range []*entity.InvoiceRecord{
		{DocumentNo: "Q-1", Status: entity.StatusQueued, QueueToken: "q1010124", QueueAt: &early},
		{DocumentNo: "Q-2", Status: entity.StatusQueued, QueueToken: "q1030124", QueueAt: &late},
		{DocumentNo: "Q-BAD", Status: entity.StatusQueued, QueueToken: "qx", QueueAt: &early},
	} {
		require.NoError(t, repo.Upsert(ctx, r))
	}

	queued, err := repo.ListQueued(ctx, 1)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "Q-1", queued[0].DocumentNo)

	require.NoError(t, repo.TouchQueued(ctx, "Q-1"))
	queued, err = repo.ListQueued(ctx, 1)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "Q-2", queued[0].DocumentNo, "la fila revisada pasa al final")

	all, err := repo.ListQueued(ctx, 20)
	require.NoError(t, err)
	assert.Len(t, all, 2, "el token malformado no se selecciona")
}

func TestLedger_ListFiltraPorFamilia(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewLedgerRepository(newTestPool(t))
	for _, no := range []string{"1001", "CN-1001", "RN-1001", "TEST-20240101-000000-ABCDEF"} {
		require.NoError(t, repo.Upsert(ctx, &entity.InvoiceRecord{DocumentNo: no, Status: entity.StatusSubmitted}))
	}

	recs, total, err := repo.List(ctx, entity.ListFilter{Class: entity.ClassCreditNotes})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "CN-1001", recs[0].DocumentNo)

	_, total, err = repo.List(ctx, entity.ListFilter{Class: entity.ClassInvoices, Status: entity.StatusSubmitted})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

// ──────────────────────────────────────────────────────────────────────────────
// Certificados, ajustes y pedidos
// ──────────────────────────────────────────────────────────────────────────────

func TestCertificates_SoloUnoActivo(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewCertificateRepository(newTestPool(t))

	a := &entity.Certificate{PEM: "a", SubjectCN: "A"}
	b := &entity.Certificate{PEM: "b", SubjectCN: "B"}
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, repo.Save(ctx, b))

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, b.ID, active.ID)

	require.NoError(t, repo.Activate(ctx, a.ID))
	active, err = repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, active.ID)

	require.NoError(t, repo.DeleteAll(ctx))
	active, err = repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestSettings_GetSetYFaltante(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewSettingsRepository(newTestPool(t))

	v, err := repo.Get(ctx, "ubl_version")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, repo.Set(ctx, "ubl_version", "1.1"))
	require.NoError(t, repo.Set(ctx, "ubl_version", "1.0"))
	v, err = repo.Get(ctx, "ubl_version")
	require.NoError(t, err)
	assert.Equal(t, "1.0", v)
}

func TestOrders_GuardaYLeePorNumero(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewOrderRepository(newTestPool(t))

	o := &entity.Order{
		ID:            77,
		Number:        "WC-77",
		PaymentMethod: "fpx",
		Billing:       entity.Address{FirstName: "Ali", Country: "MY", State: "SGR"},
		Items: []entity.OrderItem{
			{ProductID: 1, Name: "Consulta", Quantity: decimal.NewFromInt(2), Total: decimal.RequireFromString("100.00"), Tax: decimal.Zero},
		},
		ShippingLines: []entity.OrderCharge{{Name: "Envío", Total: decimal.RequireFromString("10.00")}},
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, o))

	got, err := repo.FindByNumber(ctx, "WC-77")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ali", got.Billing.FirstName)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Total.Equal(decimal.RequireFromString("100")))
	require.Len(t, got.ShippingLines, 1)
	assert.Empty(t, got.FeeLines)
}
