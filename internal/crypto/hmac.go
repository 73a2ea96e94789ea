// Package crypto provides the HMAC request-signing helpers used by the
// exchange API clients.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"time"
)

// HMACAuth holds the credentials for an HMAC-authenticated exchange API.
type HMACAuth struct {
	Key    string // API key
	Secret string // API secret, raw bytes
}

// BinanceSignature computes the signature parameter for a Binance signed
// endpoint: hex(HMAC-SHA256(secret, queryString)). The caller appends it to
// the query string as "&signature=...". The API key travels separately in
// the X-MBX-APIKEY header.
func (h *HMACAuth) BinanceSignature(query string) string {
	return hmacHex(sha256.New, []byte(h.Secret), query)
}

// BinanceTimestampedQuery appends the mandatory timestamp parameter (Unix
// milliseconds) to query and signs the result. It returns the final query
// string including the signature.
func (h *HMACAuth) BinanceTimestampedQuery(query string) string {
	return h.BinanceTimestampedQueryAt(query, time.Now().UnixMilli())
}

// BinanceTimestampedQueryAt is like BinanceTimestampedQuery but lets the
// caller supply the millisecond timestamp (useful for deterministic tests).
func (h *HMACAuth) BinanceTimestampedQueryAt(query string, unixMilli int64) string {
	if query != "" {
		query += "&"
	}
	query += "timestamp=" + strconv.FormatInt(unixMilli, 10)
	return query + "&signature=" + h.BinanceSignature(query)
}

// PoloniexHeaders returns the Key/Sign headers for a Poloniex trading API
// request. The signature is hex(HMAC-SHA512(secret, body)) over the
// url-encoded POST body.
func (h *HMACAuth) PoloniexHeaders(body string) map[string]string {
	return map[string]string{
		"Key":  h.Key,
		"Sign": hmacHex(sha512.New, []byte(h.Secret), body),
	}
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redactInline := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redactInline(h.Key), redactInline(h.Secret))
}

// hmacHex computes an HMAC of message using the given hash constructor and
// returns the digest hex-encoded.
func hmacHex(newHash func() hash.Hash, key []byte, message string) string {
	mac := hmac.New(newHash, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
