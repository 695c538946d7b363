package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"aileadgen_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "X-Retell-Signature"

// maxWebhookBody caps how much of a webhook payload we buffer for
// verification. Transcripts are the largest component and stay well under
// this in practice.
const maxWebhookBody = 1 << 20

// SignatureRequired verifies the provider's HMAC-SHA256 signature over the
// raw request body. With an empty secret (local development) verification is
// skipped. The body is re-buffered so handlers downstream can still bind it.
func SignatureRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unreadable request body", nil)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if secret == "" {
			c.Next()
			return
		}

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))

		got := c.GetHeader(signatureHeader)
		if got == "" || !hmac.Equal([]byte(expected), []byte(got)) {
			httpkit.Error(c, http.StatusUnauthorized, "invalid webhook signature", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
