package myinvois_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

// ──────────────────────────────────────────────────────────────────────────────
// Token de cola q<días><ddmmyy>
// ──────────────────────────────────────────────────────────────────────────────

func TestQueueToken_Codifica(t *testing.T) {
	base := time.Date(2024, time.January, 10, 15, 30, 0, 0, time.UTC)
	tok, err := myinvois.NewQueueToken(2, base)
	require.NoError(t, err)
	assert.Equal(t, "q2100124", tok.String())
}

func TestQueueToken_DiasFueraDeRango(t *testing.T) {
	_, err := myinvois.NewQueueToken(8, time.Now())
	assert.Error(t, err, "más de 7 días no es válido")

	_, err = myinvois.ParseQueueToken("q0100124", time.UTC)
	assert.Error(t, err, "0 días no es válido")
}

func TestQueueToken_FormatoInvalido(t *testing.T) {
	for _, s := range []string{"", "q", "x2100124", "q210012", "q2100124x", "2100124"} {
		_, err := myinvois.ParseQueueToken(s, time.UTC)
		assert.Error(t, err, "token %q debe rechazarse", s)
	}
}

func TestQueueToken_VenceDosDiasDespuesDeLaFechaDeCola(t *testing.T) {
	tok, err := myinvois.ParseQueueToken("q2010124", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, tok.Days)

	queuedAt := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

	assert.False(t, tok.IsDue(&queuedAt, time.Date(2024, time.January, 11, 0, 0, 0, 0, time.UTC)),
		"al 11-ene 00:00 todavía no vence")
	assert.True(t, tok.IsDue(&queuedAt, time.Date(2024, time.January, 12, 0, 0, 0, 0, time.UTC)),
		"al 12-ene 00:00 ya vence")
	assert.True(t, tok.IsDue(&queuedAt, time.Date(2024, time.January, 13, 8, 0, 0, 0, time.UTC)))
}

func TestQueueToken_SinFechaDeColaUsaLaDelToken(t *testing.T) {
	kl := time.FixedZone("MYT", 8*60*60)

	tok, err := myinvois.ParseQueueToken("q3100124", kl)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, time.January, 13, 0, 0, 0, 0, kl), tok.DueAt(nil))
}

// ──────────────────────────────────────────────────────────────────────────────
// Identidad: teléfono, país, dirección, estado
// ──────────────────────────────────────────────────────────────────────────────

func TestCleanPhone(t *testing.T) {
	assert.Equal(t, "+60123456789", myinvois.CleanPhone("+60 12-345 6789"))
	assert.Equal(t, "0123456789", myinvois.CleanPhone("(012) 345-6789"))
	assert.Equal(t, "", myinvois.CleanPhone("12345"), "menos de 8 dígitos no es válido")
	assert.Equal(t, "", myinvois.CleanPhone(""))
}

func TestFirstPhone_UsaElPrimeroValidoOElPorDefecto(t *testing.T) {
	assert.Equal(t, "0198765432", myinvois.FirstPhone("abc", "019-876 5432"))
	assert.Equal(t, myinvois.DefaultPhone, myinvois.FirstPhone("", "123"))
}

func TestCountryISO3(t *testing.T) {
	assert.Equal(t, "MYS", myinvois.CountryISO3("MY"))
	assert.Equal(t, "SGP", myinvois.CountryISO3("sg"))
	assert.Equal(t, "MYS", myinvois.CountryISO3(""))
	assert.True(t, myinvois.IsMalaysia("MY"))
	assert.False(t, myinvois.IsMalaysia("SG"))
}

func TestTruncateAddress_CortaPorCaracteresNoBytes(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "é"
	}
	out := myinvois.TruncateAddress(long)
	assert.Equal(t, 150, len([]rune(out)))

	assert.Equal(t, "Lot 77, Jalan Test", myinvois.TruncateAddress("Lot 77, Jalan Test"))
}

func TestStateCode(t *testing.T) {
	assert.Equal(t, "10", myinvois.StateCode("SGR"))
	assert.Equal(t, "14", myinvois.StateCode("KUL"))
	assert.Equal(t, "14", myinvois.StateCode("WP"))
	assert.Equal(t, "07", myinvois.StateCode("07"), "un código LHDN válido pasa tal cual")
	assert.Equal(t, "17", myinvois.StateCode("XX"))
	assert.Equal(t, "17", myinvois.StateCode(""))
}

func TestMSICDescription(t *testing.T) {
	assert.Equal(t, "Other human health activities n.e.c.", myinvois.MSICDescription(myinvois.DefaultMSIC))
	assert.Empty(t, myinvois.MSICDescription("99999"))
}
