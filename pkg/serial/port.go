// Package serial implements the BiDiB serial link: magic delimited
// packets, byte escaping, CRC protection, the outbound staging buffer
// and the inbound packet splitter.
package serial

import "fmt"

// A Port is a bidirectional byte stream to the interface node.
type Port interface {
	Open() error
	Close() error
	Read(buffer []byte) (int, error)
	Write(buffer []byte) (int, error)
}

// Register a new port type. This should be called inside an init()
// function of the implementation.
func RegisterPort(portType string, newPort NewPortFunc) {
	portRegistry[portType] = newPort
}

type NewPortFunc func(device string, baud int) (Port, error)

var portRegistry = make(map[string]NewPortFunc)

// NewPort creates a port of the given registered type.
func NewPort(portType string, device string, baud int) (Port, error) {
	createPort, ok := portRegistry[portType]
	if !ok {
		return nil, fmt.Errorf("unsupported port type : %v", portType)
	}
	return createPort(device, baud)
}
