package meshnode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/meshchat-go/internal/peerlink"
	meshnodepkg "github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
	peerlinkpkg "github.com/rmacdonaldsmith/meshchat-go/pkg/peerlink"
)

// TCPMeshNode implements the meshnode.MeshNode interface over plain TCP.
//
// One goroutine accepts inbound joiners and one goroutine per peer receives
// chat messages. A single mutex guards the peer set, the join flag and every
// event emission; it is never held across a socket read.
type TCPMeshNode struct {
	mu         sync.Mutex
	config     *Config
	linkConfig peerlink.Config
	logger     *zap.Logger
	observer   meshnodepkg.Observer

	listener   net.Listener
	local      meshnodepkg.Endpoint
	localAddrs map[netip.Addr]struct{}

	// Guarded by mu
	peers    map[meshnodepkg.Endpoint]peerlinkpkg.Connection
	joining  bool
	member   bool
	fatalErr error

	stopped atomic.Bool
	wg      sync.WaitGroup

	// ctx is cancelled on Close to abort in-flight outbound handshakes
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewTCPMeshNode binds the listening socket and starts accepting peers.
// The observer may be nil.
func NewTCPMeshNode(config *Config, observer meshnodepkg.Observer) (*TCPMeshNode, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var linkConfig peerlink.Config
	if config.PeerLinkConfig != nil {
		linkConfig = *config.PeerLinkConfig
	}
	linkConfig.SetDefaults()

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	listener, err := net.Listen(linkConfig.Network, config.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", config.ListenAddress, err)
	}

	local, err := localEndpoint(listener.Addr(), config.AdvertiseAddress)
	if err != nil {
		listener.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	node := &TCPMeshNode{
		config:     config,
		linkConfig: linkConfig,
		logger:     logger.With(zap.Stringer("node", local)),
		observer:   observer,
		listener:   listener,
		local:      local,
		localAddrs: interfaceAddrs(),
		peers:      make(map[meshnodepkg.Endpoint]peerlinkpkg.Connection),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	node.wg.Add(1)
	go node.acceptLoop()

	node.logger.Info("mesh node listening", zap.String("address", listener.Addr().String()))
	return node, nil
}

// LocalEndpoint returns the endpoint this node is known by
func (n *TCPMeshNode) LocalEndpoint() meshnodepkg.Endpoint {
	return n.local
}

// Peers returns a sorted snapshot of the peer set
func (n *TCPMeshNode) Peers() []meshnodepkg.Endpoint {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.peerListLocked()
}

// State returns the lifecycle state of the node
func (n *TCPMeshNode) State() meshnodepkg.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stateLocked()
}

// GetHealth returns the overall health status of this node
func (n *TCPMeshNode) GetHealth() meshnodepkg.HealthStatus {
	n.mu.Lock()
	defer n.mu.Unlock()

	status := meshnodepkg.HealthStatus{
		Healthy:        !n.stopped.Load() && n.fatalErr == nil,
		State:          n.stateLocked(),
		LocalEndpoint:  n.local,
		ConnectedPeers: len(n.peers),
	}

	switch {
	case n.fatalErr != nil:
		status.Message = fmt.Sprintf("accept loop failed: %v", n.fatalErr)
	case n.stopped.Load():
		status.Message = "node is disposed"
	case len(n.peers) == 0:
		status.Message = "waiting for peers"
	default:
		status.Message = fmt.Sprintf("connected to %d peers", len(n.peers))
	}
	return status
}

// Done is closed once the node has fully stopped
func (n *TCPMeshNode) Done() <-chan struct{} {
	return n.done
}

// Err returns the error that stopped the accept loop, if any
func (n *TCPMeshNode) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fatalErr
}

// Connect joins the chat that target belongs to.
//
// The node dials target, announces its listening port and receives either "NO" or the
// list of target's other peers; it then repeats the exchange with every listed peer. Each
// successful exchange registers the peer immediately. One Connect event for target is
// emitted at the end. A listed peer that cannot be reached is reported as an Error event
// and skipped.
func (n *TCPMeshNode) Connect(ctx context.Context, target meshnodepkg.Endpoint) error {
	if !target.IsValid() {
		return fmt.Errorf("%w: %s", meshnodepkg.ErrInvalidEndpoint, target)
	}

	n.mu.Lock()
	switch {
	case n.stopped.Load():
		n.mu.Unlock()
		return meshnodepkg.ErrNodeClosed
	case len(n.peers) > 0:
		n.mu.Unlock()
		return meshnodepkg.ErrAlreadyInChat
	case n.joining:
		n.mu.Unlock()
		return fmt.Errorf("%w: join already in progress", meshnodepkg.ErrAlreadyInChat)
	case n.isSelf(target):
		n.mu.Unlock()
		return meshnodepkg.ErrSelfConnect
	}
	if _, exists := n.peers[target]; exists {
		n.mu.Unlock()
		return fmt.Errorf("%w %s", meshnodepkg.ErrDuplicatePeer, target)
	}
	n.joining = true
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.joining = false
		n.mu.Unlock()
	}()

	n.logger.Info("joining chat", zap.Stringer("target", target))

	conn, reply, err := n.handshake(ctx, target)
	if err != nil {
		return fmt.Errorf("join %s: %w", target, err)
	}

	announced, err := parsePeerList(reply)
	if err != nil {
		conn.Close()
		return fmt.Errorf("join %s: %w", target, err)
	}

	if err := n.register(target, conn); err != nil {
		conn.Close()
		return fmt.Errorf("join %s: %w", target, err)
	}

	for _, peer := range announced {
		if peer == target || n.isSelf(peer) || n.hasPeer(peer) {
			continue
		}

		// The reply of an announced peer is its own view of the mesh; the joiner
		// already has the full list from target.
		peerConn, _, err := n.handshake(ctx, peer)
		if err == nil {
			err = n.register(peer, peerConn)
			if err != nil {
				peerConn.Close()
			}
		}
		if err != nil {
			if errors.Is(err, meshnodepkg.ErrNodeClosed) || n.stopped.Load() {
				return meshnodepkg.ErrNodeClosed
			}
			n.logger.Warn("failed to reach announced peer", zap.Stringer("peer", peer), zap.Error(err))
			n.mu.Lock()
			n.emitLocked(meshnodepkg.EventError, peer, err.Error())
			n.mu.Unlock()
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped.Load() {
		return meshnodepkg.ErrNodeClosed
	}
	n.emitLocked(meshnodepkg.EventConnect, target, "")
	n.logger.Info("joined chat", zap.Stringer("target", target), zap.Int("peers", len(n.peers)))
	return nil
}

// Send emits a local Message event attributed to this node and writes text to every
// peer. The peer set is snapshotted under the lock; the writes happen outside it.
func (n *TCPMeshNode) Send(text string) error {
	n.mu.Lock()
	if n.stopped.Load() {
		n.mu.Unlock()
		return meshnodepkg.ErrNodeClosed
	}
	n.emitLocked(meshnodepkg.EventMessage, n.local, text)

	targets := make(map[meshnodepkg.Endpoint]peerlinkpkg.Connection, len(n.peers))
	for ep, conn := range n.peers {
		targets[ep] = conn
	}
	n.mu.Unlock()

	var errs []error
	for ep, conn := range targets {
		if err := conn.Send(text); err != nil {
			n.logger.Warn("failed to send message", zap.Stringer("peer", ep), zap.Error(err))
			errs = append(errs, fmt.Errorf("send to %s: %w", ep, err))
		}
	}
	return errors.Join(errs...)
}

// Close stops the node: it closes the listening socket and every peer link,
// then waits for the accept loop and all listeners to return.
func (n *TCPMeshNode) Close() error {
	n.closeOnce.Do(func() {
		n.stopped.Store(true)
		n.cancel()

		if err := n.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			n.closeErr = fmt.Errorf("failed to close listener: %w", err)
		}

		n.mu.Lock()
		conns := make([]peerlinkpkg.Connection, 0, len(n.peers))
		for _, conn := range n.peers {
			conns = append(conns, conn)
		}
		clear(n.peers)
		n.mu.Unlock()

		for _, conn := range conns {
			conn.Close()
		}

		n.wg.Wait()
		close(n.done)
		n.logger.Info("mesh node stopped", zap.Int("closedPeers", len(conns)))
	})
	return n.closeErr
}

// acceptLoop admits inbound joiners until the node stops
func (n *TCPMeshNode) acceptLoop() {
	defer n.wg.Done()

	for {
		raw, err := n.listener.Accept()
		if err != nil {
			if n.stopped.Load() {
				return
			}
			n.fail(fmt.Errorf("accept: %w", err))
			return
		}

		conn := peerlink.NewTCPConnection(raw, &n.linkConfig)

		// A joiner that never announces its port would otherwise block Close
		stopInterrupt := context.AfterFunc(n.ctx, func() { conn.Close() })
		err = n.admit(conn)
		stopInterrupt()
		if err != nil {
			conn.Close()
			if n.stopped.Load() {
				return
			}
			// A bad joiner is dropped; only a failing listening socket stops the node.
			n.logger.Warn("rejected inbound peer", zap.Stringer("remote", raw.RemoteAddr()), zap.Error(err))
		}
	}
}

// admit performs the inbound half of the join handshake
func (n *TCPMeshNode) admit(conn *peerlink.TCPConnection) error {
	announcement, err := conn.Receive()
	if err != nil {
		return fmt.Errorf("%w: %v", meshnodepkg.ErrHandshakeFailure, err)
	}

	port, err := meshnodepkg.ParsePort(announcement)
	if err != nil {
		return fmt.Errorf("%w: %v", meshnodepkg.ErrHandshakeFailure, err)
	}

	peer, err := meshnodepkg.EndpointFromAddr(conn.RemoteAddr(), port)
	if err != nil {
		return fmt.Errorf("%w: %v", meshnodepkg.ErrHandshakeFailure, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stopped.Load() {
		return meshnodepkg.ErrNodeClosed
	}
	if _, exists := n.peers[peer]; exists {
		return fmt.Errorf("%w %s", meshnodepkg.ErrDuplicatePeer, peer)
	}

	// The reply is the one socket write made under the lock: the list must match
	// the peer set the joiner is being admitted into.
	if err := conn.Send(formatPeerList(n.peerListLocked())); err != nil {
		return fmt.Errorf("%w: %v", meshnodepkg.ErrHandshakeFailure, err)
	}

	n.registerLocked(peer, conn)
	n.emitLocked(meshnodepkg.EventConnect, peer, "")
	n.logger.Info("peer joined", zap.Stringer("peer", peer), zap.Int("peers", len(n.peers)))
	return nil
}

// handshake performs the outbound half of the join exchange with target.
// The returned connection is not registered yet.
func (n *TCPMeshNode) handshake(ctx context.Context, target meshnodepkg.Endpoint) (*peerlink.TCPConnection, string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopOnClose := context.AfterFunc(n.ctx, cancel)
	defer stopOnClose()

	conn, err := peerlink.Dial(ctx, target.String(), &n.linkConfig)
	if err != nil {
		if n.stopped.Load() {
			return nil, "", meshnodepkg.ErrNodeClosed
		}
		return nil, "", err
	}

	// Closing the link is the only way to interrupt a blocked Receive
	stopInterrupt := context.AfterFunc(ctx, func() { conn.Close() })

	reply, err := n.exchange(conn)
	if !stopInterrupt() {
		conn.Close()
		if n.stopped.Load() {
			return nil, "", meshnodepkg.ErrNodeClosed
		}
		return nil, "", ctx.Err()
	}
	if err != nil {
		conn.Close()
		return nil, "", err
	}
	return conn, reply, nil
}

// exchange sends this node's listening port and waits for the join reply
func (n *TCPMeshNode) exchange(conn *peerlink.TCPConnection) (string, error) {
	if err := conn.Send(formatPort(n.local.Port())); err != nil {
		return "", err
	}
	return conn.Receive()
}

// register adds an outbound peer to the peer set and starts its listener
func (n *TCPMeshNode) register(peer meshnodepkg.Endpoint, conn peerlinkpkg.Connection) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stopped.Load() {
		return meshnodepkg.ErrNodeClosed
	}
	if _, exists := n.peers[peer]; exists {
		return fmt.Errorf("%w %s", meshnodepkg.ErrDuplicatePeer, peer)
	}

	n.registerLocked(peer, conn)
	n.logger.Info("connected to peer", zap.Stringer("peer", peer))
	return nil
}

// registerLocked must be called with mu held and the node running
func (n *TCPMeshNode) registerLocked(peer meshnodepkg.Endpoint, conn peerlinkpkg.Connection) {
	n.peers[peer] = conn
	n.member = true

	n.wg.Add(1)
	go n.listen(peer, conn)
}

// listen receives chat messages from one peer until the link fails or the node stops
func (n *TCPMeshNode) listen(peer meshnodepkg.Endpoint, conn peerlinkpkg.Connection) {
	defer n.wg.Done()

	for {
		text, err := conn.Receive()
		if err != nil {
			n.linkFailed(peer, conn, err)
			return
		}

		n.mu.Lock()
		if n.stopped.Load() {
			n.mu.Unlock()
			return
		}
		n.emitLocked(meshnodepkg.EventMessage, peer, text)
		n.mu.Unlock()
	}
}

// linkFailed turns a listener error into a Disconnect or Error event
func (n *TCPMeshNode) linkFailed(peer meshnodepkg.Endpoint, conn peerlinkpkg.Connection, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	// Links are closed on purpose during shutdown
	if n.stopped.Load() {
		return
	}

	if peerlinkpkg.IsReset(err) {
		current, ok := n.peers[peer]
		if !ok || current != conn {
			conn.Close()
			return
		}
		delete(n.peers, peer)
		conn.Close()
		n.emitLocked(meshnodepkg.EventDisconnect, peer, "")
		n.logger.Info("peer left", zap.Stringer("peer", peer), zap.Int("peers", len(n.peers)))
		return
	}

	n.logger.Warn("peer link failed", zap.Stringer("peer", peer), zap.Error(err))
	n.emitLocked(meshnodepkg.EventError, peer, err.Error())
}

// fail records a fatal accept-loop error and shuts the node down
func (n *TCPMeshNode) fail(err error) {
	n.mu.Lock()
	n.fatalErr = err
	n.mu.Unlock()

	n.logger.Error("accept loop failed, stopping node", zap.Error(err))
	go n.Close()
}

// emitLocked delivers an event to the observer; mu must be held
func (n *TCPMeshNode) emitLocked(kind meshnodepkg.EventKind, peer meshnodepkg.Endpoint, payload string) {
	event := meshnodepkg.NewEvent(kind, peer, payload)
	if ce := n.logger.Check(zap.DebugLevel, "mesh event"); ce != nil {
		ce.Write(zap.Stringer("kind", kind), zap.Stringer("peer", peer), zap.Int("bytes", len(payload)))
	}
	if n.observer != nil {
		n.observer.HandleEvent(event)
	}
}

func (n *TCPMeshNode) stateLocked() meshnodepkg.State {
	switch {
	case n.stopped.Load():
		return meshnodepkg.StateDisposed
	case n.joining:
		return meshnodepkg.StateJoining
	case n.member:
		return meshnodepkg.StateMember
	default:
		return meshnodepkg.StateIdle
	}
}

func (n *TCPMeshNode) peerListLocked() []meshnodepkg.Endpoint {
	peers := make([]meshnodepkg.Endpoint, 0, len(n.peers))
	for ep := range n.peers {
		peers = append(peers, ep)
	}
	slices.SortFunc(peers, meshnodepkg.Endpoint.Compare)
	return peers
}

func (n *TCPMeshNode) hasPeer(peer meshnodepkg.Endpoint) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.peers[peer]
	return ok
}

// isSelf reports whether target is this node: same listening port on an
// address that reaches this host.
func (n *TCPMeshNode) isSelf(target meshnodepkg.Endpoint) bool {
	if target.Port() != n.local.Port() {
		return false
	}
	addr := target.Addr()
	if addr.IsLoopback() || addr.IsUnspecified() || addr == n.local.Addr() {
		return true
	}
	_, ok := n.localAddrs[addr]
	return ok
}

// localEndpoint derives the endpoint a node announces from its bound address
func localEndpoint(bound net.Addr, advertise string) (meshnodepkg.Endpoint, error) {
	tcpAddr, ok := bound.(*net.TCPAddr)
	if !ok {
		return meshnodepkg.Endpoint{}, fmt.Errorf("unexpected listener address %v", bound)
	}

	addr, ok := netip.AddrFromSlice(tcpAddr.IP)
	if !ok || addr.Unmap().IsUnspecified() {
		addr = netip.MustParseAddr("127.0.0.1")
		if advertise != "" {
			parsed, err := netip.ParseAddr(advertise)
			if err != nil {
				return meshnodepkg.Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidAdvertiseAddress, err)
			}
			addr = parsed
		}
	}
	return meshnodepkg.NewEndpoint(addr, uint16(tcpAddr.Port)), nil
}

// interfaceAddrs collects the unicast addresses of the host's interfaces
func interfaceAddrs() map[netip.Addr]struct{} {
	addrs := make(map[netip.Addr]struct{})
	ifaceAddrs, err := net.InterfaceAddrs()
	if err != nil {
		return addrs
	}
	for _, a := range ifaceAddrs {
		prefix, err := netip.ParsePrefix(a.String())
		if err != nil {
			continue
		}
		addrs[prefix.Addr().Unmap()] = struct{}{}
	}
	return addrs
}

// Verify that TCPMeshNode implements the MeshNode interface at compile time
var _ meshnodepkg.MeshNode = (*TCPMeshNode)(nil)
