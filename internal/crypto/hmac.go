// Package crypto provides request signing for the exchange REST APIs and
// encrypted storage for API secrets.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"time"
)

// BinanceAuth signs requests for Binance-style REST APIs. The signature is
// HMAC-SHA256 of the full query string, hex encoded, appended as the
// `signature` parameter.
type BinanceAuth struct {
	Key    string
	Secret string
}

// SignQuery returns the query string with timestamp and signature parameters
// appended. The input must already be URL encoded.
func (a *BinanceAuth) SignQuery(query string) string {
	return a.SignQueryAt(query, time.Now().UnixMilli())
}

// SignQueryAt is SignQuery with a caller-supplied millisecond timestamp,
// used for deterministic testing.
func (a *BinanceAuth) SignQueryAt(query string, tsMillis int64) string {
	if query != "" {
		query += "&"
	}
	query += "timestamp=" + strconv.FormatInt(tsMillis, 10)
	return query + "&signature=" + hmacSHA256Hex([]byte(a.Secret), query)
}

// APIKeyHeader is the header carrying the Binance API key.
const APIKeyHeader = "X-MBX-APIKEY"

// CoinoneAuth signs requests for Coinone-style REST APIs. The JSON request
// body, which must already contain the access token and a fresh nonce, is
// base64 encoded into the payload header; the signature header is
// HMAC-SHA512 of that payload, hex encoded.
type CoinoneAuth struct {
	AccessToken string
	Secret      string
}

// Coinone request header names.
const (
	PayloadHeader   = "X-COINONE-PAYLOAD"
	SignatureHeader = "X-COINONE-SIGNATURE"
)

// Headers returns the payload and signature headers for a JSON request body.
func (a *CoinoneAuth) Headers(body []byte) map[string]string {
	payload := base64.StdEncoding.EncodeToString(body)
	return map[string]string{
		PayloadHeader:   payload,
		SignatureHeader: hmacSHA512Hex([]byte(a.Secret), payload),
	}
}

func hmacSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func hmacSHA512Hex(key []byte, message string) string {
	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
