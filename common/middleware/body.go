package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	apperrors "storefront-gateway/common/errors"

	"github.com/gin-gonic/gin"
)

// JSONBodyKey holds the parsed request body in the gin context.
const JSONBodyKey = "json_body"

// DefaultMaxBodyBytes mirrors the usual 100kb JSON body limit.
const DefaultMaxBodyBytes int64 = 100 * 1024

var emptyObject = []byte("{}")

// JSONBody parses request bodies declared as application/json before any
// handler runs. Malformed JSON and top-level scalars are rejected with 400,
// oversized bodies with 413. Requests not declared as JSON get an empty
// object, as do empty JSON bodies.
func JSONBody(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		if !isJSONContentType(c.GetHeader("Content-Type")) {
			c.Set(JSONBodyKey, emptyObject)
			c.Next()
			return
		}

		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
		if err != nil {
			apperrors.Respond(c, apperrors.Wrap(apperrors.ErrInvalidJSON, err))
			return
		}
		if int64(len(raw)) > maxBytes {
			apperrors.Respond(c, apperrors.ErrPayloadTooLarge)
			return
		}

		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 {
			trimmed = emptyObject
		}
		// strict: only objects and arrays at the top level
		if (trimmed[0] != '{' && trimmed[0] != '[') || !json.Valid(trimmed) {
			apperrors.Respond(c, apperrors.ErrInvalidJSON)
			return
		}

		c.Set(JSONBodyKey, trimmed)
		c.Request.Body = io.NopCloser(bytes.NewReader(trimmed))
		c.Next()
	}
}

// Body returns the body stored by JSONBody, or an empty object when the
// middleware did not run for this request.
func Body(c *gin.Context) []byte {
	if v, ok := c.Get(JSONBodyKey); ok {
		if raw, ok := v.([]byte); ok {
			return raw
		}
	}
	return emptyObject
}

func isJSONContentType(value string) bool {
	if value == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
