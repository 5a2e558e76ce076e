// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Every tenant owns a Partition: a Catalog over the shared document store
// plus private lexical and vector indices. The TenantRegistry creates
// partitions lazily and destroys them on wipe. Writers of one tenant are
// serialised; queries run concurrently and never block each other.
//
// Services are pure Go with no CGO or external dependencies.
package services
