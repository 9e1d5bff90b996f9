// Package routingtable provides interfaces for routing mesh events to local subscribers.
//
// This package defines the core abstractions for the routing table component:
//   - Subscriber: Interface for local consumers of mesh events (SSE streams, gRPC streams)
//   - Subscription: A kind pattern bound to a subscriber
//   - RoutingTable: Interface for managing pattern-to-subscriber mappings and dispatching events
//
// A routing table is itself a meshnode.Observer, so it can be handed to a node
// (usually inside a meshnode.MultiObserver). Dispatch never blocks: a subscriber
// that cannot keep up loses events and counts the drops.
//
// Example usage:
//
//	sub := routingtable.NewChannelSubscriber("sse-1", routingtable.LocalClient, 64)
//	err := table.Subscribe(ctx, "message", sub)
//	if err != nil {
//		return err
//	}
//	defer table.UnsubscribeAll(ctx, sub.ID())
//
//	for event := range sub.Events() {
//		render(event)
//	}
//
// Patterns:
//   - "*" matches every event kind
//   - "connect", "message", "disconnect", "error" match that kind only
package routingtable
