package server

import (
	"bytes"
	"io"
	"mime"
	"net/http"

	"github.com/rs/xid"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"dmchat/internal/storage/zapadapter"
)

// enforceJSON is a middleware pre-processing write requests.
// It checks the application/json Content-Type header and that the body is
// well-formed JSON before any typed decoding runs. A blank Content-Type is
// normalized to application/json.
func enforceJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-Type")
		if contentType != "" {
			mt, _, err := mime.ParseMediaType(contentType)
			if err != nil {
				writeMessage(w, http.StatusBadRequest, "Malformed Content-Type header")
				return
			}

			if mt != "application/json" {
				writeMessage(w, http.StatusUnsupportedMediaType, "Content-Type header must be application/json")
				return
			}
		} else {
			r.Header.Set("Content-Type", "application/json")
		}

		// check if provided request body is valid JSON
		var bodyBuf bytes.Buffer
		body, err := io.ReadAll(io.TeeReader(r.Body, &bodyBuf))
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Can not read request body")
			return
		}

		if len(body) == 0 {
			writeMessage(w, http.StatusBadRequest, "No body provided")
			return
		}

		if err := fastjson.ValidateBytes(body); err != nil {
			writeMessage(w, http.StatusBadRequest, "Malformed JSON")
			return
		}

		r.Body = io.NopCloser(&bodyBuf)

		next.ServeHTTP(w, r)
	})
}

// logRequests tags each request with an id, logs it, and passes the id down
// through the context so storage logging can correlate
func logRequests(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := xid.New().String()

		ctx := zapadapter.WithRequestID(r.Context(), id)

		logger.Info("incoming http request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("uri", r.URL.RequestURI()),
			zap.String("ip", r.RemoteAddr),
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
