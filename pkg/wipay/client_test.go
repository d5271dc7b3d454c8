package wipay

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	c, err := NewClient(Config{AccountNumber: "1234567890", APIKey: "secret-key"})
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{AccountNumber: "1"})
	assert.Error(t, err)

	c := newTestClient(t)
	assert.Equal(t, DefaultAPIURL, c.config.APIURL)
	assert.Equal(t, "JM", c.config.CountryCode)
	assert.Equal(t, "JMD", c.config.Currency)
}

func TestRequestHash(t *testing.T) {
	params := map[string]string{"b": "2", "a": "1", "hash": "ignored"}
	got := RequestHash(params, "key")
	assert.Len(t, got, 64)
	assert.Equal(t, RequestHash(map[string]string{"a": "1", "b": "2"}, "key"), got)
	assert.NotEqual(t, RequestHash(map[string]string{"a": "1", "b": "3"}, "key"), got)
}

func TestBuildPayment(t *testing.T) {
	c := newTestClient(t)
	p := c.BuildPayment(&PaymentRequest{
		OrderID:   "RES-42-1717200000000",
		Amount:    345,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		ReturnURL: "https://villas.example.com/api/v1/payments/wipay/callback",
		CancelURL: "https://villas.example.com/book/payment/failed",
	})

	assert.Equal(t, DefaultAPIURL, p.PaymentURL)
	assert.Equal(t, "RES-42-1717200000000", p.OrderID)
	assert.Equal(t, "345.00", p.Params["total"])
	assert.Equal(t, "345.00", p.Params["amount"])
	assert.Equal(t, "JM", p.Params["country_code"])
	assert.Equal(t, RequestHash(p.Params, "secret-key"), p.Params["hash"])
}

func TestVerifyHash(t *testing.T) {
	c := newTestClient(t)
	sum := md5.Sum([]byte("TXN-1" + "345.00" + "secret-key"))
	hash := hex.EncodeToString(sum[:])
	assert.Equal(t, hash, CallbackHash("TXN-1", "345.00", "secret-key"))

	cb := ParseCallback(url.Values{
		"order_id":       {"RES-42-1"},
		"status":         {"SUCCESS"},
		"transaction_id": {"TXN-1"},
		"total":          {"345.00"},
		"hash":           {strings.ToUpper(hash)},
	})
	assert.True(t, cb.Succeeded())
	assert.True(t, c.VerifyHash(cb))
	assert.Equal(t, 345.0, cb.TotalAmount())

	cb.Total = "1.00"
	assert.False(t, c.VerifyHash(cb))

	cb.Hash = ""
	assert.False(t, c.VerifyHash(cb))
}

func TestParseCallback_Failed(t *testing.T) {
	cb := ParseCallback(url.Values{"order_id": {"RES-42-1"}, "status": {"failed"}, "total": {"abc"}})
	assert.False(t, cb.Succeeded())
	assert.Equal(t, 0.0, cb.TotalAmount())
}
