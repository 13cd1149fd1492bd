package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─────────────────────────────────────────────────────────────────────────────
// Detección de formato y comandos sin conexión
// ─────────────────────────────────────────────────────────────────────────────

func TestIsP12_PorExtension(t *testing.T) {
	cases := map[string]bool{
		"firma.p12":     true,
		"FIRMA.PFX":     true,
		"bundle.pem":    false,
		"sin-extension": false,
		"dir.p12/x.crt": false,
	}
	for path, want := range cases {
		assert.Equal(t, want, isP12(path), path)
	}
}

func TestVerify_DocumentoIlegibleDevuelveError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.txt")
	require.NoError(t, os.WriteFile(path, []byte("esto no es base64 ni json!"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"verify", path})
	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "documento ilegible")
}

func TestCertInspect_ArchivoInexistente(t *testing.T) {
	rootCmd.SetArgs([]string{"cert", "inspect", filepath.Join(t.TempDir(), "no-existe.pem")})
	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "leer")
}
