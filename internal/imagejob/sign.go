package imagejob

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"math/big"
	"net/url"
	"strconv"
	"time"
)

const (
	nonceAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	nonceLength   = 8
)

// Sign computes base64url(HMAC-SHA1(secret, path&timestamp&nonce)) without
// padding.
func Sign(path, timestamp, nonce, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(path + "&" + timestamp + "&" + nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// NewNonce returns 8 random lowercase alphanumeric characters.
func NewNonce() string {
	buf := make([]byte, nonceLength)
	max := big.NewInt(int64(len(nonceAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		buf[i] = nonceAlphabet[n.Int64()]
	}
	return string(buf)
}

// SignedParams is the authentication tuple attached to one request.
type SignedParams struct {
	Path      string
	Timestamp string
	Nonce     string
	Signature string
}

// NewSignedParams signs path at now with nonce.
func NewSignedParams(path, secret string, now time.Time, nonce string) SignedParams {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	return SignedParams{
		Path:      path,
		Timestamp: ts,
		Nonce:     nonce,
		Signature: Sign(path, ts, nonce, secret),
	}
}

// Query renders the four authentication query parameters.
func (p SignedParams) Query(accessKey string) url.Values {
	q := url.Values{}
	q.Set("AccessKey", accessKey)
	q.Set("Signature", p.Signature)
	q.Set("Timestamp", p.Timestamp)
	q.Set("SignatureNonce", p.Nonce)
	return q
}
