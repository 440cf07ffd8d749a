// Package notifier delivers bot messages to the configured chat.
//
// Delivery is synchronous: Send returns the transport error to the caller
// instead of queueing and retrying. An outbound token bucket keeps bursts
// under the Bot API limits.
//
// # History
//
// For debugging and operator visibility, the service keeps a small in-memory
// history of recently sent messages.
package notifier
