// Package webhooks answers the platform subscription handshake and turns
// signed page deliveries into leadgen events for the ingestion pipeline.
//
// A delivery is acknowledged once every leadgen change in it has been
// handed to the ingester, whatever the per-lead outcome.
package webhooks
