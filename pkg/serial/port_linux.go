//go:build linux

package serial

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func init() {
	RegisterPort("device", NewDevicePort)
}

var baudFlags = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// DevicePort drives a real serial device, configured raw 8N1.
type DevicePort struct {
	device string
	baud   uint32
	fd     int
}

func NewDevicePort(device string, baud int) (Port, error) {
	flag, ok := baudFlags[baud]
	if !ok {
		return nil, fmt.Errorf("unsupported baud rate : %v", baud)
	}
	return &DevicePort{device: device, baud: flag, fd: -1}, nil
}

func (p *DevicePort) Open() error {
	fd, err := unix.Open(p.device, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return fmt.Errorf("open %v : %w", p.device, err)
	}
	termios := unix.Termios{
		Iflag: unix.IGNBRK,
		Cflag: unix.CS8 | unix.CREAD | unix.CLOCAL | p.baud,
	}
	// poll every 100ms so Close can stop a pending read
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 1
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &termios); err != nil {
		unix.Close(fd)
		return fmt.Errorf("configure %v : %w", p.device, err)
	}
	p.fd = fd
	return nil
}

func (p *DevicePort) Close() error {
	if p.fd < 0 {
		return nil
	}
	fd := p.fd
	p.fd = -1
	return unix.Close(fd)
}

func (p *DevicePort) Read(buffer []byte) (int, error) {
	if p.fd < 0 {
		return 0, unix.EBADF
	}
	return unix.Read(p.fd, buffer)
}

func (p *DevicePort) Write(buffer []byte) (int, error) {
	if p.fd < 0 {
		return 0, unix.EBADF
	}
	return unix.Write(p.fd, buffer)
}
