// Package kafka feeds messages from a Kafka topic into the event log.
//
// Each message value must be a JSON document; it is published with source
// "kafka" and committed only after the append succeeded, so a crash between
// the two replays the message.
package kafka
