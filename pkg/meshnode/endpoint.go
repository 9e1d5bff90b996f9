package meshnode

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Endpoint identifies a mesh member by address and listening port.
// The port is the one the peer announced during the join handshake, not the
// source port of the TCP connection. Endpoints are comparable and usable as map keys.
type Endpoint struct {
	ap netip.AddrPort
}

// NewEndpoint builds an endpoint; IPv4-mapped IPv6 addresses are unmapped.
func NewEndpoint(addr netip.Addr, port uint16) Endpoint {
	return Endpoint{ap: netip.AddrPortFrom(addr.Unmap(), port)}
}

// ParseEndpoint parses "addr:port" (or "[addr]:port" for IPv6)
func ParseEndpoint(s string) (Endpoint, error) {
	ap, err := netip.ParseAddrPort(strings.TrimSpace(s))
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w %q: %v", ErrInvalidEndpoint, s, err)
	}
	if ap.Port() == 0 {
		return Endpoint{}, fmt.Errorf("%w %q: port must be non-zero", ErrInvalidEndpoint, s)
	}
	return NewEndpoint(ap.Addr(), ap.Port()), nil
}

// ParsePort parses a listening port sent as ASCII decimal
func ParsePort(s string) (uint16, error) {
	port, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("%w: bad port %q", ErrInvalidEndpoint, s)
	}
	return uint16(port), nil
}

// EndpointFromAddr combines the IP of a transport address with a listening port.
func EndpointFromAddr(addr net.Addr, port uint16) (Endpoint, error) {
	switch a := addr.(type) {
	case *net.TCPAddr:
		ip, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			return Endpoint{}, fmt.Errorf("%w: address %v", ErrInvalidEndpoint, addr)
		}
		return NewEndpoint(ip, port), nil
	case nil:
		return Endpoint{}, fmt.Errorf("%w: nil address", ErrInvalidEndpoint)
	default:
		ap, err := netip.ParseAddrPort(addr.String())
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: address %v", ErrInvalidEndpoint, addr)
		}
		return NewEndpoint(ap.Addr(), port), nil
	}
}

// Addr returns the IP address of the endpoint
func (e Endpoint) Addr() netip.Addr { return e.ap.Addr() }

// Port returns the listening port of the endpoint
func (e Endpoint) Port() uint16 { return e.ap.Port() }

// AddrPort returns the endpoint as a netip.AddrPort
func (e Endpoint) AddrPort() netip.AddrPort { return e.ap }

// IsValid reports whether the endpoint has an address and a non-zero port
func (e Endpoint) IsValid() bool { return e.ap.IsValid() && e.ap.Port() != 0 }

// String renders the endpoint the way it travels on the wire
func (e Endpoint) String() string {
	if !e.ap.IsValid() {
		return "invalid"
	}
	return e.ap.String()
}

// Compare orders endpoints by address, then port
func (e Endpoint) Compare(other Endpoint) int {
	return e.ap.Compare(other.ap)
}

// MarshalText implements encoding.TextMarshaler
func (e Endpoint) MarshalText() ([]byte, error) {
	if !e.ap.IsValid() {
		return []byte{}, nil
	}
	return []byte(e.ap.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (e *Endpoint) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*e = Endpoint{}
		return nil
	}
	parsed, err := ParseEndpoint(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
