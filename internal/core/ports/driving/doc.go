// Package driving defines interfaces that external actors (CLI, MCP, watchers)
// use to interact with core services. These are the "driving" ports in hexagonal
// architecture terminology - they drive the application.
//
// Every call carries the tenant identifier supplied by the caller's
// authentication layer. The core trusts it verbatim.
//
// Implementations of these interfaces live in internal/core/services.
package driving
