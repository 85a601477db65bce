// Package notifier delivers milestone messages to chat channels.
//
// Delivery is synchronous per message: Notify walks every configured Channel
// in order, waiting on a shared token bucket and retrying transient failures
// with jittered exponential backoff. Failures are joined and returned; the
// caller decides whether they matter.
package notifier
