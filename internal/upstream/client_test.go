package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login", r.URL.Path)
		assert.Equal(t, "testuser", r.URL.Query().Get("username"))
		assert.Equal(t, "bankofanthos", r.URL.Query().Get("password"))
		_, _ = w.Write([]byte(`{"token": "jwt-token"}`))
	}))
	defer srv.Close()

	c := NewClient("", "", srv.URL)
	token, err := c.Login(context.Background(), "testuser", "bankofanthos")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("", "", srv.URL)
	_, err := c.Login(context.Background(), "u", "p")
	assert.Error(t, err)
}

func TestGetTransactionsConvertsCents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/1011226111", r.URL.Path)
		assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))
		assert.Equal(t, "30", r.URL.Query().Get("window_days"))
		_, _ = w.Write([]byte(`[
			{"transactionId": 7, "amount": 1250, "timestamp": "2024-05-01T10:00:00.000+00:00",
			 "fromAccountNum": "1011226111", "toAccountNum": "9099791699"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	records, err := c.GetTransactions(context.Background(), "1011226111", "jwt", 30)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "12.50", records[0].Amount.String())
	assert.Equal(t, "7", records[0].TransactionID.String())
}

func TestGetTransactionsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	_, err := c.GetTransactions(context.Background(), "acct", "", 0)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
}

func TestGetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/balances/1011226111", r.URL.Path)
		_, _ = w.Write([]byte(`512075`))
	}))
	defer srv.Close()

	c := NewClient("", srv.URL, "")
	balance, err := c.GetBalance(context.Background(), "1011226111", "jwt")
	require.NoError(t, err)
	assert.InDelta(t, 5120.75, balance, 1e-9)
}
