// Package httpserver provides the base HTTP server shared by openRoots
// binaries: standard middleware, CORS for browser clients, health and drain
// endpoints, an optional metrics listener, and graceful shutdown.
//
// Components expose their endpoints by implementing RouteRegistrar and are
// mounted onto the server's router at construction time:
//
//	handler := gateway.NewHandler(...)
//	hub := notify.NewHub(log)
//	srv, err := httpserver.New(cfg, handler, hub)
//	srv.RunInBackground()
//	defer srv.Shutdown()
//
// The /drain and /undrain endpoints flip the readiness state reported by
// /readyz so load balancers can take an instance out of rotation before it
// stops.
package httpserver
