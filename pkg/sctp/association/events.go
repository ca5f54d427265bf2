package association

import "net"

// EventKind tags an application-facing Event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventStreamReadable
	EventStreamWritable
	EventStreamOpened
	EventDatagramReceived
	EventAssociationLost
	// EventStreamReset signals that a RECONFIG stream reset (RFC 6525)
	// completed, locally or peer-initiated, for StreamID.
	EventStreamReset
)

// Event is one application-facing output, drained through Poll.
type Event struct {
	Kind     EventKind
	StreamID uint16  // valid for StreamReadable/StreamWritable/StreamOpened
	Lost     *Error  // valid for AssociationLost
}

// EndpointEventKind tags an endpoint-facing event.
type EndpointEventKind int

const (
	// EndpointDrained signals the hosting endpoint that this
	// association's TCB may be released.
	EndpointDrained EndpointEventKind = iota
)

// EndpointEvent is one endpoint-facing output, drained through
// PollEndpointEvent.
type EndpointEvent struct {
	Kind EndpointEventKind
}

// Transmit is one outbound datagram, drained through PollTransmit.
type Transmit struct {
	Remote  net.Addr
	Payload []byte
}

// AssociationEventKind tags one application-request input variant.
type AssociationEventKind int

const (
	EventOpenStream AssociationEventKind = iota
	EventAcceptStream
	EventSendPayloadData
	EventShutdown
	EventClose
	EventResetStream
)

// AssociationEvent is one application-request input, dispatched by
// HandleEvent.
type AssociationEvent struct {
	Kind              AssociationEventKind
	StreamID          uint16
	PayloadProtocolID uint32
	Data              []byte
	Unordered         bool
}
