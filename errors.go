package bidib

import "errors"

var (
	ErrIllegalArgument = errors.New("Error in function arguments")
	ErrUnknownBoard    = errors.New("Board is not registered")
	ErrNotConnected    = errors.New("Board is not connected")
	ErrPortClosed      = errors.New("Serial port is not open")
	ErrRxMsgLength     = errors.New("Wrong receive message length")
	ErrCRC             = errors.New("CRC does not match")
	ErrSyscall         = errors.New("Syscall failed")
	ErrInvalidState    = errors.New("Driver not ready")
)
