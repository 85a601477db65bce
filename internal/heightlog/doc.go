// Package heightlog owns the persisted height time series.
//
// The document (data/heights.json) is the only state dipwatch keeps. It is
// loaded, mutated and persisted as an explicit *HeightLog value on every tick;
// nothing is cached between ticks.
//
// # Recovery
//
// A document that cannot be decoded is moved aside (never deleted) and a fresh
// one is started, so a bad write costs at most the corrupted history and never
// future samples.
//
// # Notifications
//
// Whether the target was already announced is derived from the log itself
// (see AlreadyNotified); there is no second flag to keep in sync.
package heightlog
