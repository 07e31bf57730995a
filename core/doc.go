// Package core contains the lead ingestion domain entities, contracts, error
// taxonomy and configuration. Adapters (graph client, stores, queues, HTTP)
// depend on this package; core must not depend on any of them.
package core
