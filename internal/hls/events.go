package hls

import "fmt"

// Resource is the class of object a fetch retrieves.
type Resource int

const (
	ResourceManifest Resource = iota
	ResourceLevel
	ResourceSegment
)

func (r Resource) String() string {
	switch r {
	case ResourceManifest:
		return "manifest"
	case ResourceLevel:
		return "level"
	case ResourceSegment:
		return "segment"
	default:
		return fmt.Sprintf("Resource(%d)", int(r))
	}
}

// Kind classifies a session error.
type Kind int

const (
	KindBufferStall Kind = iota
	KindNetwork
	KindMedia
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindBufferStall:
		return "buffer_stall"
	case KindNetwork:
		return "network"
	case KindMedia:
		return "media"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// EventType distinguishes raw session events.
type EventType int

const (
	// EventLoaded fires when a load pipeline has parsed its first playlist.
	EventLoaded EventType = iota
	// EventDelivered fires on the first segment written after a (re)start.
	EventDelivered
	// EventError carries a transport or decode problem.
	EventError
)

// Event is a raw notification from a LiveSession.
type Event struct {
	SessionID string
	Type      EventType
	Kind      Kind
	Resource  Resource
	Fatal     bool
	Err       error
}

// LifecycleType is what the controller reports upward.
type LifecycleType int

const (
	SessionReady LifecycleType = iota
	SessionReloading
	SessionFailed
)

func (t LifecycleType) String() string {
	switch t {
	case SessionReady:
		return "sessionReady"
	case SessionReloading:
		return "sessionReloading"
	case SessionFailed:
		return "sessionFailed"
	default:
		return fmt.Sprintf("LifecycleType(%d)", int(t))
	}
}

// Lifecycle is a classified session transition.
type Lifecycle struct {
	Type          LifecycleType
	SessionID     string
	Kind          Kind
	Unrecoverable bool
	Err           error
}
