// Package kafka carries the control-plane traffic between the application and
// its box instances over Kafka topics: statements and read requests out,
// instance-up, alert and read completion events in.
package kafka
