// Package host is the high level entry point of the library. A Host
// owns the serial link, the transmission state table and the board
// registry, and exposes the BiDiB system commands on top of them.
package host

import (
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	bidib "github.com/trinnguyen/libbidib"
	"github.com/trinnguyen/libbidib/pkg/board"
	"github.com/trinnguyen/libbidib/pkg/serial"
	"github.com/trinnguyen/libbidib/pkg/transmission"
)

// Host drives one BiDiB interface. Create with NewHost, then Connect.
type Host struct {
	*transmission.Table
	link     *serial.Link
	boards   *board.Registry
	logger   *log.Logger
	actionID atomic.Uint32
	callback func(msg bidib.Message)

	// sendMu keeps seqnum stamping and admission of one frame together,
	// so frames reach the wire in stamp order.
	sendMu sync.Mutex
}

// NewHost assembles a host on top of port. The boards registry may be
// nil when only address based operations are used. A nil logger falls
// back to the logrus standard logger, a nil clock to the real clock.
func NewHost(port serial.Port, boards *board.Registry, logger *log.Logger, clock clockwork.Clock) *Host {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if boards == nil {
		boards = board.NewRegistry()
	}
	link := serial.NewLink(port, logger)
	return &Host{
		Table:  transmission.NewTable(link, logger, clock),
		link:   link,
		boards: boards,
		logger: logger,
	}
}

// Boards returns the board registry.
func (h *Host) Boards() *board.Registry {
	return h.boards
}

// SetCallback registers the sink for decoded upstream traffic. Must be
// called before Connect. Matched messages carry the action id of the
// command they answer.
func (h *Host) SetCallback(callback func(msg bidib.Message)) {
	h.callback = callback
}

// Connect opens the serial link and starts processing upstream traffic.
func (h *Host) Connect() error {
	h.link.Subscribe(h)
	return h.link.Connect()
}

// Disconnect closes the link and tears down the state table.
func (h *Host) Disconnect() error {
	err := h.link.Disconnect()
	h.Table.Close()
	return err
}

// NextActionID allocates a fresh host wide action id. Ids start at 1;
// 0 means "no action".
func (h *Host) NextActionID() uint32 {
	return h.actionID.Add(1)
}

// Send builds the frame for one downstream message, stamps the send
// sequence number and drives it through the admission engine. It
// returns the allocated action id and whether the message left the
// host immediately (false means it was deferred and will be sent by a
// later drain).
func (h *Host) Send(addr bidib.Address, msgType uint8, data []byte) (uint32, bool) {
	actionID := h.NextActionID()
	sent := h.sendWithActionID(addr, msgType, data, actionID)
	return actionID, sent
}

func (h *Host) sendWithActionID(addr bidib.Address, msgType uint8, data []byte, actionID uint32) bool {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	wire := addr.Wire()
	frame := make([]byte, 0, 1+len(wire)+2+len(data))
	frame = append(frame, uint8(len(wire)+2+len(data)))
	frame = append(frame, wire...)
	frame = append(frame, h.NextSendSeqnum(addr), msgType)
	frame = append(frame, data...)
	sent := h.TrySend(addr, msgType, frame, actionID)
	if sent {
		h.link.Flush()
	}
	return sent
}

// Handle implements bidib.MessageHandler for the link. It verifies the
// receive sequence number, matches the message against the node's
// outstanding expectations and forwards it upstream.
func (h *Host) Handle(msg bidib.Message) {
	if msg.Seqnum != 0 {
		expected := h.NextReceiveSeqnum(msg.Addr)
		if msg.Seqnum != expected {
			h.logger.Warnf("Receive seqnum gap for %v: expected %d got %d",
				msg.Addr, expected, msg.Seqnum)
			next := msg.Seqnum + 1
			if next == 0 {
				next = 1
			}
			h.SetReceiveSeqnum(msg.Addr, next)
		}
	}
	msg.ActionID = h.HandleResponse(msg.Addr, msg.Type)

	switch msg.Type {
	case bidib.MsgStall:
		if len(msg.Data) >= 1 {
			h.UpdateStall(msg.Addr, msg.Data[0])
		}
	case bidib.MsgNodeNew, bidib.MsgNodeLost:
		if len(msg.Data) >= 1 {
			// confirm the node table change towards the interface
			h.Send(msg.Addr, bidib.MsgNodeChangedAck, msg.Data[:1])
		}
	}

	if h.callback != nil {
		h.callback(msg)
	}
}
