package x402

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402labs/snipevault/internal/session"
)

func newTestClient(t *testing.T, maxUSDCPerDay float64) *Client {
	t.Helper()

	key, err := session.Generate()
	require.NoError(t, err)

	client, err := New(key, "https://api.mainnet-beta.solana.com", maxUSDCPerDay)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestClient_Get_SignsRequest(t *testing.T) {
	var gotSigner, gotSig, gotNetwork string
	var gotMethod, gotURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSigner = r.Header.Get(headerSigner)
		gotSig = r.Header.Get(headerSignature)
		gotNetwork = r.Header.Get(headerNetwork)
		gotMethod = r.Method
		gotURL = r.URL.String()
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	client := newTestClient(t, 1.0)

	resp, err := client.Get(context.Background(), server.URL+"/price")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/price", gotURL)
	assert.Equal(t, "solana", gotNetwork)

	// The signature verifies against the advertised signer.
	pub, err := base58.Decode(gotSigner)
	require.NoError(t, err)
	sig, err := base64.StdEncoding.DecodeString(gotSig)
	require.NoError(t, err)
	msg := []byte(http.MethodGet + " " + server.URL + "/price\n")
	assert.True(t, ed25519.Verify(pub, msg, sig))
}

func TestClient_DevnetNetwork(t *testing.T) {
	key, err := session.Generate()
	require.NoError(t, err)

	client, err := New(key, "https://api.devnet.solana.com", 1.0)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "solana-devnet", client.network)
}

func TestClient_PostJSON(t *testing.T) {
	var gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, 1.0)

	resp, err := client.PostJSON(context.Background(), server.URL, map[string]string{"token": "$DOGGO"})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"token":"$DOGGO"}`, gotBody)
}

func TestClient_PaymentRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	client := newTestClient(t, 1.0)

	_, err := client.Get(context.Background(), server.URL)
	var payErr *PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, http.StatusPaymentRequired, payErr.Status)
}

func TestClient_BudgetEnforced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerAmount, "0.0015")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, 0.003)
	ctx := context.Background()

	// Two charged calls reach the cap.
	for i := 0; i < 2; i++ {
		resp, err := client.Get(ctx, server.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.InDelta(t, 0.003, client.DailySpent(), 1e-9)

	// The third is refused locally.
	_, err := client.Get(ctx, server.URL)
	require.ErrorIs(t, err, ErrBudgetExceeded)
	var payErr *PaymentError
	assert.ErrorAs(t, err, &payErr)
}

func TestClient_TransportError(t *testing.T) {
	client := newTestClient(t, 1.0)

	_, err := client.Get(context.Background(), "http://127.0.0.1:1/unreachable")
	var transErr *TransportError
	assert.ErrorAs(t, err, &transErr)
}

func TestFromSession_RoundTrip(t *testing.T) {
	key, err := session.Generate()
	require.NoError(t, err)
	raw, err := key.Bytes()
	require.NoError(t, err)
	wantPub, err := key.Pubkey()
	require.NoError(t, err)
	key.Zero()

	client, err := FromSession(raw, "https://api.mainnet-beta.solana.com", 1.0)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, wantPub, client.pubkey)
}

func TestFromSession_InvalidKey(t *testing.T) {
	_, err := FromSession([]byte("too short"), "https://api.mainnet-beta.solana.com", 1.0)
	assert.Error(t, err)
}
