package jwt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/tikusl4ju/myinvoice-sync/pkg/jwt"
)

func TestGenerateParse_IdaYVuelta(t *testing.T) {
	tok, err := pkgjwt.Generate("s3cret", "ops-1", pkgjwt.RoleOperator, "myinvoice-sync", 5)
	require.NoError(t, err)

	user, role, err := pkgjwt.Parse("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "ops-1", user)
	assert.Equal(t, pkgjwt.RoleOperator, role)
}

func TestParse_SecretoIncorrecto(t *testing.T) {
	tok, err := pkgjwt.Generate("s3cret", "ops-1", pkgjwt.RoleAdmin, "x", 5)
	require.NoError(t, err)

	_, _, err = pkgjwt.Parse("otro", tok)
	assert.Error(t, err, "un token firmado con otro secreto debe rechazarse")
}

func TestParse_Expirado(t *testing.T) {
	tok, err := pkgjwt.Generate("s3cret", "ops-1", pkgjwt.RoleAdmin, "x", -1)
	require.NoError(t, err)

	_, _, err = pkgjwt.Parse("s3cret", tok)
	assert.Error(t, err)
}

func TestGenerate_RolDesconocido(t *testing.T) {
	_, err := pkgjwt.Generate("s3cret", "ops-1", "bodeguero", "x", 5)
	assert.Error(t, err)
}
