// Package api provides the local read-only HTTP status server.
//
// Pollers on the LAN (HomeKit bridges, dashboards, shell scripts) get the
// current door snapshot without speaking the controller's stream protocol:
//
//	GET /api/v1/health             liveness and version
//	GET /api/v1/status             all doors plus stream connection state
//	GET /api/v1/doors/{id}         one door
//	GET /api/v1/doors/{id}/history recent transitions (when history enabled)
//
// The server is read-only on purpose: triggering doors stays with the
// controller's own API so this surface can be exposed to untrusted LAN
// clients without an auth layer.
//
// Lifecycle follows the other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
