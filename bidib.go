// Package bidib implements the host side of the BiDiB bus protocol.
// It talks to a tree of interconnected nodes over a serial transport,
// tracks per-node transmission state and exposes high-level commands on
// top of it.
package bidib

import "fmt"

// Address is the 4-byte address stack of a node. Byte 0 is the hop below
// the interface, deeper hops fill the following bytes in order. The all
// zero address is the interface itself. A zero byte after the first
// non-zero byte terminates the path.
type Address [4]uint8

// RootAddress addresses the interface node directly attached to the host.
var RootAddress = Address{0x00, 0x00, 0x00, 0x00}

// NewAddress builds an address stack from up to 4 hop bytes.
func NewAddress(hops ...uint8) Address {
	var addr Address
	copy(addr[:], hops)
	return addr
}

func (a Address) String() string {
	return fmt.Sprintf("0x%02x 0x%02x 0x%02x 0x%02x", a[0], a[1], a[2], a[3])
}

// IsRoot reports whether the address is the interface itself.
func (a Address) IsRoot() bool {
	return a[0] == 0x00
}

// Wire returns the on-wire encoding of the address stack: the non-zero
// hop bytes followed by the terminating zero. The interface address
// encodes as a single zero byte.
func (a Address) Wire() []byte {
	wire := make([]byte, 0, 5)
	for _, b := range a {
		if b == 0x00 {
			break
		}
		wire = append(wire, b)
	}
	return append(wire, 0x00)
}

// AddressFromWire decodes an address stack from its on-wire form and
// returns the number of bytes consumed, including the terminating zero.
func AddressFromWire(raw []byte) (Address, int) {
	var addr Address
	for i := 0; i < len(raw); i++ {
		if raw[i] == 0x00 {
			return addr, i + 1
		}
		if i < 4 {
			addr[i] = raw[i]
		}
	}
	return addr, len(raw)
}

// Message is a single decoded upstream message.
type Message struct {
	Addr   Address
	Seqnum uint8
	Type   uint8
	Data   []byte
	// ActionID is the host-assigned tag of the command this message
	// answers, or 0 when it matched no outstanding expectation.
	ActionID uint32
}

// MessageHandler receives decoded upstream messages.
type MessageHandler interface {
	Handle(msg Message)
}
