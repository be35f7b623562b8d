package middleware

import (
	"net/http"

	"github.com/2beens/catalogguard/pkg"

	log "github.com/sirupsen/logrus"
)

func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Tracef(" ====> request [%s] path: [%s] [client: %s] [UA: %s]",
				r.Method, r.URL.Path, pkg.ReadClientKey(r), r.Header.Get("User-Agent"),
			)
			next.ServeHTTP(w, r)
		})
	}
}
