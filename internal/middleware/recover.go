package middleware

import (
	"net/http"
	"runtime/debug"

	"schooldir/pkg/logger"
	"schooldir/pkg/utils"
)

// Recover turns a panic in a handler into a 500 envelope.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.LogError("panic serving %s %s [%s]: %v\n%s",
				r.Method, r.URL.Path, RequestIDFrom(r.Context()), rec, debug.Stack())
			utils.WriteError(w, http.StatusInternalServerError, utils.ErrServerPanic, "Something went wrong!")
		}()

		next.ServeHTTP(w, r)
	})
}

// Chain applies middlewares so that the first one listed is outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
