package grpcapi

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

// PeersInfo is the decoded reply of Peers
type PeersInfo struct {
	LocalEndpoint string
	State         string
	Peers         []string
}

// HealthInfo is the decoded reply of Health
type HealthInfo struct {
	Healthy           bool
	State             string
	LocalEndpoint     string
	ConnectedPeers    int
	StreamSubscribers int
	Message           string
}

func peersToStruct(local meshnode.Endpoint, state meshnode.State, peers []meshnode.Endpoint) (*structpb.Struct, error) {
	list := make([]interface{}, len(peers))
	for i, p := range peers {
		list[i] = p.String()
	}
	return structpb.NewStruct(map[string]interface{}{
		"localEndpoint": local.String(),
		"state":         state.String(),
		"peers":         list,
	})
}

func peersFromStruct(s *structpb.Struct) PeersInfo {
	fields := s.GetFields()
	info := PeersInfo{
		LocalEndpoint: fields["localEndpoint"].GetStringValue(),
		State:         fields["state"].GetStringValue(),
		Peers:         []string{},
	}
	for _, v := range fields["peers"].GetListValue().GetValues() {
		info.Peers = append(info.Peers, v.GetStringValue())
	}
	return info
}

func healthToStruct(h meshnode.HealthStatus, subscribers int) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"healthy":           h.Healthy,
		"state":             h.State.String(),
		"localEndpoint":     h.LocalEndpoint.String(),
		"connectedPeers":    h.ConnectedPeers,
		"streamSubscribers": subscribers,
		"message":           h.Message,
	})
}

func healthFromStruct(s *structpb.Struct) HealthInfo {
	fields := s.GetFields()
	return HealthInfo{
		Healthy:           fields["healthy"].GetBoolValue(),
		State:             fields["state"].GetStringValue(),
		LocalEndpoint:     fields["localEndpoint"].GetStringValue(),
		ConnectedPeers:    int(fields["connectedPeers"].GetNumberValue()),
		StreamSubscribers: int(fields["streamSubscribers"].GetNumberValue()),
		Message:           fields["message"].GetStringValue(),
	}
}

// eventToStruct encodes an event; the payload key is present only for kinds that carry one
func eventToStruct(event meshnode.Event) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"kind":      structpb.NewStringValue(event.Kind.String()),
		"peer":      structpb.NewStringValue(event.Peer.String()),
		"timestamp": structpb.NewStringValue(event.Timestamp.UTC().Format(time.RFC3339Nano)),
	}
	if event.HasPayload() {
		fields["payload"] = structpb.NewStringValue(event.Payload)
	}
	return &structpb.Struct{Fields: fields}
}

func eventFromStruct(s *structpb.Struct) (meshnode.Event, error) {
	fields := s.GetFields()

	kind, err := meshnode.ParseEventKind(fields["kind"].GetStringValue())
	if err != nil {
		return meshnode.Event{}, err
	}
	peer, err := meshnode.ParseEndpoint(fields["peer"].GetStringValue())
	if err != nil {
		return meshnode.Event{}, err
	}
	timestamp, err := time.Parse(time.RFC3339Nano, fields["timestamp"].GetStringValue())
	if err != nil {
		return meshnode.Event{}, fmt.Errorf("bad event timestamp: %w", err)
	}

	return meshnode.Event{
		Kind:      kind,
		Peer:      peer,
		Payload:   fields["payload"].GetStringValue(),
		Timestamp: timestamp,
	}, nil
}
