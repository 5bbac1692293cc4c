package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/httplog/v3"
)

// Recovery turns a handler panic into a 500 so one bad request cannot take the
// loopback server down.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recover() != nil {
				writeJSONError(r.Context(), w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				// httplog records the panic
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Logging records one line per request. Only the content type and origin are
// logged: photo API tokens never pass through this server, but a local UI may
// still send credentials in headers.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema: httplog.SchemaECS.Concise(true),

		LogRequestHeaders:  []string{"Content-Type", "Origin"},
		LogResponseHeaders: []string{},
		LogRequestBody:     nil,
		LogResponseBody:    nil,

		RecoverPanics: false,
	})
}

// SameOrigin rejects state-changing requests a browser sends on behalf of
// another site with 403. Requests without browser fetch metadata, such as
// those from the CLI or curl, pass.
func SameOrigin(next http.Handler) http.Handler {
	protection := http.NewCrossOriginProtection()
	protection.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.WarnContext(r.Context(), "cross-origin request rejected",
			"origin", r.Header.Get("Origin"),
			"path", r.URL.Path,
		)
		writeJSONError(r.Context(), w, "cross-origin request rejected", http.StatusForbidden)
	}))
	return protection.Handler(next)
}

// applyMiddlewares wraps h so that the first middleware runs first.
func applyMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
