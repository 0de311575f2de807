package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	apperrors "rentcore/pkg/errors"
	"rentcore/pkg/logger"
)

const SignatureHeader = "X-Signature-256"

// PaymentEventSignature accepts a request only when SignatureHeader carries the
// hex HMAC-SHA256 of the body under secret, optionally prefixed "sha256=".
func PaymentEventSignature(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signature := extractSignature(r)
			if signature == "" {
				rejectSignature(w, log, r, "Missing "+SignatureHeader+" header")
				return
			}

			body, err := readAndRestoreBody(r)
			if err != nil {
				rejectSignature(w, log, r, "Failed to read request body")
				return
			}

			if !VerifySignature(body, signature, secret) {
				rejectSignature(w, log, r, "Invalid payment event signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Sign returns the hex signature PaymentEventSignature expects for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(body []byte, received string, secret string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(strings.ToLower(received)))
}

func extractSignature(r *http.Request) string {
	header := r.Header.Get(SignatureHeader)
	if signature, found := strings.CutPrefix(header, "sha256="); found {
		return signature
	}
	return header
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func rejectSignature(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Payment event verification failed",
		"request_id", RequestID(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	writeJSONError(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Unauthorized")
}
