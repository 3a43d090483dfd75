package serial

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	bidib "github.com/trinnguyen/libbidib"
	"github.com/trinnguyen/libbidib/internal/crc"
	"github.com/trinnguyen/libbidib/internal/fifo"
)

const (
	pktMagic  uint8 = 0xFE
	pktEscape uint8 = 0xFD
	escapeXor uint8 = 0x20
)

const rxFifoSize = 4096

// Link frames outgoing messages into magic delimited, escaped, CRC
// protected packets and splits incoming packets back into messages. It
// implements the staging buffer the transmission core appends to.
type Link struct {
	mu      sync.Mutex
	port    Port
	logger  *log.Logger
	handler bidib.MessageHandler

	staging []byte
	txCrc   crc.CRC8

	rxFifo  *fifo.Fifo
	packet  []byte
	escaped bool

	wg      sync.WaitGroup
	running bool
}

// NewLink creates a link on top of port. A nil logger falls back to the
// logrus standard logger.
func NewLink(port Port, logger *log.Logger) *Link {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Link{
		port:    port,
		logger:  logger,
		staging: []byte{pktMagic},
		rxFifo:  fifo.NewFifo(rxFifoSize),
	}
}

// Subscribe registers the handler that receives decoded upstream
// messages. Must be called before Connect.
func (l *Link) Subscribe(handler bidib.MessageHandler) {
	l.handler = handler
}

// Connect opens the port, retrying with exponential backoff, arms the
// staging buffer and starts the reception routine.
func (l *Link) Connect() error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 10 * time.Second
	err := backoff.Retry(l.port.Open, policy)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.rearm()
	l.running = true
	l.mu.Unlock()
	l.wg.Add(1)
	go l.handleReception()
	return nil
}

// Disconnect closes the port and stops the reception routine.
func (l *Link) Disconnect() error {
	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
	err := l.port.Close()
	l.wg.Wait()
	return err
}

// rearm resets the staging buffer to a fresh packet start. Callers must
// hold the link mutex.
func (l *Link) rearm() {
	l.staging = append(l.staging[:0], pktMagic)
	l.txCrc = 0
}

func (l *Link) appendEscaped(b uint8) {
	if b == pktMagic || b == pktEscape {
		l.staging = append(l.staging, pktEscape, b^escapeXor)
	} else {
		l.staging = append(l.staging, b)
	}
}

// Append stages one length prefixed message. Part of the
// transmission.Buffer interface; non-blocking.
func (l *Link) Append(message []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range message {
		l.txCrc.Single(b)
		l.appendEscaped(b)
	}
}

// Flush closes the staged packet with its CRC and trailing magic and
// writes it to the port. Flushing an empty stager is a no-op.
func (l *Link) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.staging) <= 1 {
		return
	}
	l.appendEscaped(uint8(l.txCrc))
	l.staging = append(l.staging, pktMagic)
	if _, err := l.port.Write(l.staging); err != nil {
		l.logger.Errorf("Write to serial port failed: %v", err)
	}
	l.rearm()
}

// Handle incoming traffic
func (l *Link) handleReception() {
	defer l.wg.Done()
	buffer := make([]byte, 512)
	for {
		n, err := l.port.Read(buffer)
		if err != nil {
			l.mu.Lock()
			running := l.running
			l.mu.Unlock()
			if running {
				l.logger.Errorf("Read from serial port failed: %v", err)
			}
			return
		}
		if n == 0 {
			continue
		}
		l.rxFifo.Write(buffer[:n])
		l.parse()
	}
}

// parse consumes the rx fifo byte-wise: unescape, split on magic,
// verify CRC, split packets into messages.
func (l *Link) parse() {
	single := make([]byte, 1)
	for l.rxFifo.Read(single) == 1 {
		b := single[0]
		if b == pktMagic {
			if len(l.packet) > 0 {
				l.processPacket(l.packet)
				l.packet = l.packet[:0]
			}
			l.escaped = false
			continue
		}
		if b == pktEscape {
			l.escaped = true
			continue
		}
		if l.escaped {
			b ^= escapeXor
			l.escaped = false
		}
		l.packet = append(l.packet, b)
	}
}

func (l *Link) processPacket(packet []byte) {
	var check crc.CRC8
	check.Block(packet)
	if check != 0 {
		l.logger.Errorf("Discarding packet with bad CRC (%d bytes)", len(packet))
		return
	}
	payload := packet[:len(packet)-1]
	for len(payload) > 0 {
		msgLen := int(payload[0])
		if msgLen < 3 || msgLen+1 > len(payload) {
			l.logger.Errorf("Discarding malformed message of length %d", msgLen)
			return
		}
		l.processMessage(payload[:msgLen+1])
		payload = payload[msgLen+1:]
	}
}

func (l *Link) processMessage(raw []byte) {
	addr, n := bidib.AddressFromWire(raw[1:])
	if 1+n+2 > len(raw) {
		l.logger.Errorf("Discarding message with truncated header")
		return
	}
	msg := bidib.Message{
		Addr:   addr,
		Seqnum: raw[1+n],
		Type:   raw[2+n],
		Data:   append([]byte(nil), raw[3+n:]...),
	}
	if l.handler != nil {
		l.handler.Handle(msg)
	}
}
