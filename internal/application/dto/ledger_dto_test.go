package dto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/dto"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
)

// ──────────────────────────────────────────────────────────────────────────────
// Listado del libro
// ──────────────────────────────────────────────────────────────────────────────

func TestListRecordsRequest_FilterAplicaLimitePorDefecto(t *testing.T) {
	f := dto.ListRecordsRequest{Status: entity.StatusRetry, Class: "credit_notes", Offset: 40}.Filter()

	assert.Equal(t, entity.StatusRetry, f.Status)
	assert.Equal(t, entity.ClassCreditNotes, f.Class)
	assert.Equal(t, 20, f.Limit, "sin limit se usan 20 filas")
	assert.Equal(t, 40, f.Offset)
}

func TestListRecordsRequest_FilterRespetaLimitePedido(t *testing.T) {
	f := dto.ListRecordsRequest{Limit: 5}.Filter()
	assert.Equal(t, 5, f.Limit)
}
