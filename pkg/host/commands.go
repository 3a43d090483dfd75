package host

import (
	bidib "github.com/trinnguyen/libbidib"
	"github.com/trinnguyen/libbidib/pkg/board"
)

// resolve maps a board name to its configured address.
func (h *Host) resolve(name string) (board.Board, error) {
	if name == "" {
		h.logger.Error("Board name must not be empty")
		return board.Board{}, bidib.ErrIllegalArgument
	}
	b, ok := h.boards.Lookup(name)
	if !ok {
		return board.Board{}, bidib.ErrUnknownBoard
	}
	if !b.Connected {
		return board.Board{}, bidib.ErrNotConnected
	}
	return b, nil
}

func (h *Host) sendToBoard(name string, what string, msgType uint8, data []byte) (uint32, error) {
	b, err := h.resolve(name)
	if err != nil {
		return 0, err
	}
	actionID, _ := h.Send(b.Addr, msgType, data)
	h.logger.Infof("Send %s to board: %s (%v) with action id: %d", what, name, b.Addr, actionID)
	return actionID, nil
}

// Ping sends a ping byte to a board; the node answers with a pong
// carrying the same byte.
func (h *Host) Ping(name string, pingByte uint8) (uint32, error) {
	return h.sendToBoard(name, "ping", bidib.MsgSysPing, []byte{pingByte})
}

// Identify switches the identify indicator of a board on (0x01) or off
// (0x00).
func (h *Host) Identify(name string, state uint8) (uint32, error) {
	return h.sendToBoard(name, "identify", bidib.MsgSysIdentify, []byte{state})
}

// GetMagic queries the protocol magic of a board.
func (h *Host) GetMagic(name string) (uint32, error) {
	return h.sendToBoard(name, "get magic", bidib.MsgSysGetMagic, nil)
}

// GetProtocolVersion queries the BiDiB protocol version of a board.
func (h *Host) GetProtocolVersion(name string) (uint32, error) {
	return h.sendToBoard(name, "get protocol version", bidib.MsgSysGetPVersion, nil)
}

// GetSoftwareVersion queries the firmware version of a board.
func (h *Host) GetSoftwareVersion(name string) (uint32, error) {
	return h.sendToBoard(name, "get software version", bidib.MsgSysGetSwVersion, nil)
}

// GetUniqueID queries the unique id of a board.
func (h *Host) GetUniqueID(name string) (uint32, error) {
	return h.sendToBoard(name, "get unique id", bidib.MsgSysGetUniqueID, nil)
}

// SystemEnable allows spontaneous messages bus wide.
func (h *Host) SystemEnable() {
	actionID, _ := h.Send(bidib.RootAddress, bidib.MsgSysEnable, nil)
	h.logger.Infof("Send system enable with action id: %d", actionID)
}

// SystemDisable stops spontaneous messages bus wide.
func (h *Host) SystemDisable() {
	actionID, _ := h.Send(bidib.RootAddress, bidib.MsgSysDisable, nil)
	h.logger.Infof("Send system disable with action id: %d", actionID)
}

// SystemReset restarts the interface node. All transmission state is
// dropped with it.
func (h *Host) SystemReset() {
	actionID, _ := h.Send(bidib.RootAddress, bidib.MsgSysReset, nil)
	h.logger.Infof("Send system reset with action id: %d", actionID)
	h.Table.Reset()
}
