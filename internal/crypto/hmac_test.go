package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinanceSignQueryAt(t *testing.T) {
	auth := &BinanceAuth{Key: "api-key", Secret: "api-secret"}

	signed := auth.SignQueryAt("symbol=XRPUSDT&side=BUY", 1700000000000)

	require.True(t, strings.HasPrefix(signed, "symbol=XRPUSDT&side=BUY&timestamp=1700000000000&signature="))

	payload := "symbol=XRPUSDT&side=BUY&timestamp=1700000000000"
	mac := hmac.New(sha256.New, []byte("api-secret"))
	mac.Write([]byte(payload))
	want := hex.EncodeToString(mac.Sum(nil))
	assert.Equal(t, payload+"&signature="+want, signed)
}

func TestBinanceSignQueryAtEmptyQuery(t *testing.T) {
	auth := &BinanceAuth{Secret: "s"}
	signed := auth.SignQueryAt("", 1)
	assert.True(t, strings.HasPrefix(signed, "timestamp=1&signature="))
}

func TestCoinoneHeaders(t *testing.T) {
	auth := &CoinoneAuth{AccessToken: "token", Secret: "secret"}
	body := []byte(`{"access_token":"token","nonce":"abc"}`)

	headers := auth.Headers(body)

	payload := headers[PayloadHeader]
	decoded, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	assert.Equal(t, body, decoded)

	mac := hmac.New(sha512.New, []byte("secret"))
	mac.Write([]byte(payload))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), headers[SignatureHeader])
}

func TestEncryptDecryptSecretRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("super-secret-api-key", "hunter2")
	require.NoError(t, err)

	secret, err := DecryptSecret(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "super-secret-api-key", secret)

	_, err = DecryptSecret(blob, "wrong")
	require.Error(t, err)
}

func TestEncryptSecretValidation(t *testing.T) {
	_, err := EncryptSecret("", "pw")
	require.Error(t, err)
	_, err = EncryptSecret("s", "")
	require.Error(t, err)
}

func TestLoadSecretResolutionOrder(t *testing.T) {
	secret, err := LoadSecret(SecretConfig{RawSecret: "plain"})
	require.NoError(t, err)
	assert.Equal(t, "plain", secret)

	_, err = LoadSecret(SecretConfig{})
	require.Error(t, err)
}
