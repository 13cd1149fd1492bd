package document_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/document"
)

// ──────────────────────────────────────────────────────────────────────────────
// Serialización canónica
// ──────────────────────────────────────────────────────────────────────────────

func sampleTree() *document.Node {
	root := document.New("").
		Attr("_D", "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2").
		Attr("_A", "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2").
		Attr("_B", "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2")
	inv := document.New("Invoice",
		document.Text("ID", "INV-1"),
		document.Number("LineExtensionAmount", "100.00").Attr("currencyID", "MYR"),
		document.New("InvoiceLine", document.Text("ID", "1")),
		document.New("InvoiceLine", document.Text("ID", "2")),
	)
	return root.Add(inv)
}

func TestCanonical_OrdenaLlavesYAgrupaHermanos(t *testing.T) {
	got := string(document.Canonical(sampleTree()))

	want := `{"Invoice":[{"ID":[{"_":"INV-1"}],` +
		`"InvoiceLine":[{"ID":[{"_":"1"}]},{"ID":[{"_":"2"}]}],` +
		`"LineExtensionAmount":[{"_":100.00,"currencyID":"MYR"}]}],` +
		`"_A":"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2",` +
		`"_B":"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2",` +
		`"_D":"urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"}`
	assert.Equal(t, want, got, "las llaves deben salir en orden de bytes y los hermanos en arreglo")
}

func TestCanonical_Determinista(t *testing.T) {
	a := document.Canonical(sampleTree())
	b := document.Canonical(sampleTree())
	assert.Equal(t, a, b, "dos serializaciones del mismo árbol deben ser idénticas")
}

func TestCanonical_HojaSinValorNoEmiteGuionBajo(t *testing.T) {
	n := document.New("").Add(document.New("CanonicalizationMethod").Attr("Algorithm", "x"))
	assert.Equal(t, `{"CanonicalizationMethod":[{"Algorithm":"x"}]}`, string(document.Canonical(n)))
}

func TestCanonical_EscapaSoloLoNecesario(t *testing.T) {
	n := document.New("").Add(document.Text("Name", "Kedai \"Ali\" / Café\n"))
	assert.Equal(t, `{"Name":[{"_":"Kedai \"Ali\" / Café\n"}]}`, string(document.Canonical(n)),
		"no se escapan '/' ni caracteres no ASCII")
}

func TestCanonical_LlaveDuplicadaProvocaPanic(t *testing.T) {
	n := document.New("X").Attr("ID", "a").Add(document.Text("ID", "b"))
	assert.Panics(t, func() { document.Canonical(document.New("").Add(n)) })
}

func TestCanonical_NumeroInvalidoProvocaPanic(t *testing.T) {
	n := document.New("").Add(document.Number("Amount", "abc"))
	assert.Panics(t, func() { document.Canonical(n) })
}

func TestSeal_HashYBase64SobreLosMismosBytes(t *testing.T) {
	s := document.Seal(sampleTree())

	assert.Len(t, s.Hash, 64, "sha256 en hex tiene 64 caracteres")
	assert.Equal(t, document.Hash(s.Canonical), s.Hash)

	decoded, err := base64.StdEncoding.DecodeString(s.Base64)
	require.NoError(t, err)
	assert.Equal(t, s.Canonical, decoded, "el base64 debe decodificar a los bytes hasheados")
}

func TestHash_VectorConocido(t *testing.T) {
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		document.Hash([]byte("abc")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Parse
// ──────────────────────────────────────────────────────────────────────────────

func TestParse_ReproduceBytesCanonicos(t *testing.T) {
	orig := document.Canonical(sampleTree())

	tree, err := document.Parse(orig)
	require.NoError(t, err)

	assert.Equal(t, string(orig), string(document.Canonical(tree)),
		"parsear y volver a serializar debe dar los mismos bytes")
	assert.Equal(t, "INV-1", tree.PathValue("Invoice", "ID"))
	assert.Len(t, tree.Child("Invoice").ChildrenNamed("InvoiceLine"), 2)
	amt := tree.Path("Invoice", "LineExtensionAmount")
	require.NotNil(t, amt)
	assert.True(t, amt.IsNumeric(), "el literal numérico se conserva como número")
	assert.Equal(t, "100.00", amt.Value())
}

func TestParseBase64_PayloadInvalido(t *testing.T) {
	_, err := document.ParseBase64("%%%")
	assert.Error(t, err)
}

func TestParse_RechazaTiposNoSoportados(t *testing.T) {
	_, err := document.Parse([]byte(`{"Invoice":[{"Flag":true}]}`))
	assert.Error(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Navegación y mutación
// ──────────────────────────────────────────────────────────────────────────────

func TestNode_RemoveYClone(t *testing.T) {
	tree := sampleTree()
	cp := tree.Clone()

	tree.Child("Invoice").Remove("InvoiceLine")

	assert.Empty(t, tree.Child("Invoice").ChildrenNamed("InvoiceLine"))
	assert.Len(t, cp.Child("Invoice").ChildrenNamed("InvoiceLine"), 2, "la copia no debe verse afectada")
}

func TestNode_PathFaltanteDevuelveNil(t *testing.T) {
	tree := sampleTree()
	assert.Nil(t, tree.Path("Invoice", "Nope", "ID"))
	assert.Equal(t, "", tree.PathValue("Invoice", "Nope"))
}
