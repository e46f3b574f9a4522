// Package ingress is the top-level request router: everything except
// /admin/-prefixed paths goes to the forwarding engine, mirroring the
// balancer's split between its management surface and its forwarding core.
package ingress

import "net/http"

// New returns a handler that forwards every request to next except those
// whose path starts with "/admin/", which are answered with 404 Not Found
// (the admin surface is served on its own listener) so the forwarding engine
// never consults the registry for administrative traffic.
func New(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAdminPath(r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAdminPath(path string) bool {
	return len(path) >= len("/admin/") && path[:len("/admin/")] == "/admin/"
}
