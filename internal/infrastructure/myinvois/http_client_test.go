package myinvois_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
)

// ──────────────────────────────────────────────────────────────────────────────
// Servidor falso del API
// ──────────────────────────────────────────────────────────────────────────────

type fakeAPI struct {
	tokenCalls int32
	badSecret  string
	lastSubmit map[string][]map[string]string
	lastCancel map[string]string
	lastQuery  string
	unauthOnce int32
	cancelCode int
	cancelBody string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/connect/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		atomic.AddInt32(&f.tokenCalls, 1)
		if r.PostForm.Get("client_secret") == f.badSecret {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_client"}`)
			return
		}
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "InvoicingAPI", r.PostForm.Get("scope"))
		_, _ = io.WriteString(w, `{"access_token":"tok","expires_in":3600}`)
	})
	mux.HandleFunc("/api/v1.0/documentsubmissions/", func(w http.ResponseWriter, r *http.Request) {
		if atomic.CompareAndSwapInt32(&f.unauthOnce, 1, 0) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastSubmit))
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"submissionUid":"S1","acceptedDocuments":[{"uuid":"R-1","invoiceCodeNumber":"1001"}],"rejectedDocuments":[]}`)
	})
	mux.HandleFunc("/api/v1.0/documents/R-1/details", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"uuid":"R-1","status":"Valid","longId":"LONG-1"}`)
	})
	mux.HandleFunc("/api/v1.0/documents/state/R-1/state", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastCancel))
		w.WriteHeader(f.cancelCode)
		_, _ = io.WriteString(w, f.cancelBody)
	})
	mux.HandleFunc("/api/v1.0/taxpayer/validate/IG123", func(w http.ResponseWriter, r *http.Request) {
		f.lastQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newClient(t *testing.T, f *fakeAPI, secrets ...string) *myinvois.HTTPClient {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	if len(secrets) == 0 {
		secrets = []string{"s1"}
	}
	return myinvois.NewHTTPClient(myinvois.ClientConfig{
		APIHost:       srv.URL,
		ClientID:      "cid",
		ClientSecrets: secrets,
		Timeout:       5 * time.Second,
	}, nil)
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmit_EnviaSobreYLeeUUID(t *testing.T) {
	f := &fakeAPI{}
	c := newClient(t, f)

	res, err := c.Submit(context.Background(), "abc123", "1001", "eyJ9")
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.Equal(t, "R-1", res.RemoteID)
	assert.Contains(t, res.Body, "submissionUid")
	require.Len(t, f.lastSubmit["documents"], 1)
	doc := f.lastSubmit["documents"][0]
	assert.Equal(t, "JSON", doc["format"])
	assert.Equal(t, "abc123", doc["documentHash"])
	assert.Equal(t, "1001", doc["codeNumber"])
	assert.Equal(t, "eyJ9", doc["document"])
}

func TestToken_SeCacheaEntreLlamadas(t *testing.T) {
	f := &fakeAPI{cancelCode: http.StatusOK}
	c := newClient(t, f)
	ctx := context.Background()

	_, err := c.Submit(ctx, "h", "1", "b")
	require.NoError(t, err)
	_, err = c.GetStatus(ctx, "R-1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.tokenCalls), "el token debe reutilizarse")
}

func TestToken_UsaSegundoSecretoSiElPrimeroFalla(t *testing.T) {
	f := &fakeAPI{badSecret: "viejo"}
	c := newClient(t, f, "viejo", "nuevo")

	res, err := c.Submit(context.Background(), "h", "1", "b")
	require.NoError(t, err)
	assert.Equal(t, "R-1", res.RemoteID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.tokenCalls))
}

func TestToken_SinSecretoValidoDevuelveError(t *testing.T) {
	f := &fakeAPI{badSecret: "malo"}
	c := newClient(t, f, "malo")

	_, err := c.Submit(context.Background(), "h", "1", "b")
	assert.Error(t, err, "sin token no hay llamada: es un fallo de transporte")
}

func TestDo_401RenuevaTokenYReintenta(t *testing.T) {
	f := &fakeAPI{unauthOnce: 1}
	c := newClient(t, f)

	res, err := c.Submit(context.Background(), "h", "1", "b")
	require.NoError(t, err)
	assert.Equal(t, "R-1", res.RemoteID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.tokenCalls))
}

func TestGetStatus_LeeEstadoYLongID(t *testing.T) {
	c := newClient(t, &fakeAPI{})

	res, err := c.GetStatus(context.Background(), "R-1")
	require.NoError(t, err)
	assert.Equal(t, "Valid", res.Status)
	assert.Equal(t, "LONG-1", res.LongID)
}

func TestCancel_Aceptada(t *testing.T) {
	f := &fakeAPI{cancelCode: http.StatusOK, cancelBody: `{"uuid":"R-1","status":"Cancelled"}`}
	c := newClient(t, f)

	res, err := c.Cancel(context.Background(), "R-1", "Cancelled by store")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.False(t, res.WindowElapsed())
	assert.Equal(t, "cancelled", f.lastCancel["status"])
	assert.Equal(t, "Cancelled by store", f.lastCancel["reason"])
}

func TestCancel_VentanaVencida(t *testing.T) {
	f := &fakeAPI{
		cancelCode: http.StatusBadRequest,
		cancelBody: `{"error":{"code":"OperationPeriodOver","message":"The time limit for cancellation has expired"}}`,
	}
	c := newClient(t, f)

	res, err := c.Cancel(context.Background(), "R-1", "x")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.True(t, res.WindowElapsed())
}

func TestCancel_VentanaVencidaEnDetalles(t *testing.T) {
	r := &myinvois.CancelResult{StatusCode: 400, Body: `{"error":{"code":"BadArgument","details":[{"code":"OperationPeriodOver"}]}}`}
	assert.True(t, r.WindowElapsed())

	r = &myinvois.CancelResult{StatusCode: 400, Body: `no es json`}
	assert.False(t, r.WindowElapsed())
}

func TestValidateTIN_EnviaParDeIdentificacion(t *testing.T) {
	f := &fakeAPI{}
	c := newClient(t, f)

	res, err := c.ValidateTIN(context.Background(), "IG123", "NRIC", "900101015555")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "idType=NRIC&idValue=900101015555", f.lastQuery)
}

func TestSubmit_ServidorCaidoEsError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := myinvois.NewHTTPClient(myinvois.ClientConfig{APIHost: srv.URL, ClientID: "c", ClientSecrets: []string{"s"}}, nil)

	_, err := c.Submit(context.Background(), "h", "1", "b")
	assert.Error(t, err)
}

func TestMemoryTokenCache_DeleteInvalida(t *testing.T) {
	ctx := context.Background()
	c := myinvois.NewMemoryTokenCache()
	require.NoError(t, c.Set(ctx, "tok", time.Minute))

	tok, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)

	require.NoError(t, c.Delete(ctx))
	_, ok, _ = c.Get(ctx)
	assert.False(t, ok)
}
