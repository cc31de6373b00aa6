package resource

// Handle is an opaque reference to a resource in a table.
// Handle 0 is reserved and always invalid.
//
// The low 24 bits hold the slot index plus one and the high 8 bits hold the
// slot generation, so a handle that was released and whose slot was reused
// no longer resolves.
type Handle uint32

const (
	indexBits = 24
	indexMask = 1<<indexBits - 1

	// MaxHandles is the number of slots a single backend can address.
	MaxHandles = indexMask
)

func makeHandle(idx int, gen uint8) Handle {
	return Handle(uint32(gen)<<indexBits | uint32(idx+1))
}

func (h Handle) index() int {
	return int(uint32(h)&indexMask) - 1
}

func (h Handle) generation() uint8 {
	return uint8(uint32(h) >> indexBits)
}

// Event types for resource lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventBorrowReturned
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow_returned"
	default:
		return "unknown"
	}
}

// Event represents a resource lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by resource values that need cleanup.
// Drop runs once, when the value's handle is removed.
type Dropper interface {
	Drop()
}
