// Package messaging publishes and consumes messages over NATS, NSQ, Kafka or
// Google Pub/Sub behind one small API.
//
// Every message carries a body and string attributes. Brokers with native
// headers carry attributes as headers; NSQ has none, so its payloads are wrapped
// in a JSON envelope. Consume blocks until its context ends.
package messaging
