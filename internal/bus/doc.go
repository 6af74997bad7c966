// Package bus provides the broadcast publish/subscribe channel the engine's
// components communicate over: antenna lifecycle events feed the registry,
// newly created notes feed the dispatcher, and delivery notifications go out
// per antenna.
//
// The bus is an eventually consistent broadcast, not a log: there is no
// replay, and a subscriber that joins late or falls behind simply misses
// events. Registry consumers compensate with a one-time authoritative load.
package bus
