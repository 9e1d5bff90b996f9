// Package meshnode provides the public contract of a meshchat node.
//
// This package defines the core abstractions for the mesh engine:
//   - Endpoint: (address, listening port) identifying a mesh member
//   - Event: a Connect, Message, Disconnect or Error notification
//   - Observer: the sink that receives events
//   - MeshNode: the engine that joins a chat, broadcasts and shuts down
//
// Mesh formation:
//  1. A node binds its listening port and starts accepting.
//  2. A joiner dials a member and sends its own listening port as ASCII decimal.
//  3. The member answers "NO" when it has no other peers, otherwise the
//     space-separated list of its peers' endpoints.
//  4. The joiner repeats the exchange against every listed endpoint, so every
//     member ends up directly connected to every other member.
//  5. After the handshake any payload on a peer link is a chat message.
//
// Events are delivered to the Observer while the node holds its internal lock, so an
// observer never sees an event out of order with respect to the peer set it describes.
// Observers must return quickly and must not call back into the node.
//
// Example usage:
//
//	node, err := meshnode.NewTCPMeshNode(config, meshnode.ObserverFunc(func(e meshnode.Event) {
//		fmt.Printf("%s %s %s\n", e.Kind, e.Peer, e.Payload)
//	}))
//	if err != nil {
//		return err
//	}
//	defer node.Close()
//
//	if err := node.Connect(ctx, seed); err != nil {
//		return err
//	}
//	return node.Send("hello, mesh")
//
// The implementation lives in internal/meshnode.
package meshnode
