package httpmiddleware

import (
	"net/http"

	"github.com/boypt/simple-btclient/common"
)

func Liveness(log common.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// liveness response
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			_, err := w.Write([]byte("OK"))
			common.HandleError(log, err)
			return
		}
		h.ServeHTTP(w, r)
	})
}
