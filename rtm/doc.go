// Package rtm relays real-time messaging events to typed subscribers.
//
// A Proxy receives raw events from the messaging connection (storage, presence,
// message, connection state and token expiry), classifies them and fans them out
// to the subscribers registered for the affected channel and attribute key.
//
// Storage items are deduplicated by their serialized value: a redelivered item
// whose string is identical to the last one observed for the same target and key
// is dropped. The comparison is textual, so two payloads that are equal as JSON
// but differ in key order count as a change.
//
// Subscribers are held through delegate.Ref and are never kept alive by the
// proxy. Only events from stream channels reach typed subscribers; everything is
// still forwarded to the configured Passthrough.
package rtm
