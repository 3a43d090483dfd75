// Package transmission implements the per-node transmission state
// machine of the BiDiB host: output buffer accounting, stall
// propagation across the address tree, response tracking and the
// bidirectional sequence number counters.
package transmission

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	bidib "github.com/trinnguyen/libbidib"
)

const (
	// Maximum number of outstanding reply bytes a node is able to
	// buffer. Admission is checked against this bound before a
	// message may leave the host.
	maxRespondBytes = 48

	// Outstanding expectations older than this are reaped when the
	// next response for the node arrives.
	responseExpiration = 2 * time.Second
)

// Buffer is the outbound staging buffer the table hands admitted frames
// to. Both operations are non-blocking; Flush commits the staged frames
// to the wire.
type Buffer interface {
	Append(message []byte)
	Flush()
}

type responseEntry struct {
	msgType  uint8
	creation time.Time
	actionID uint32
}

type messageEntry struct {
	msgType  uint8
	addr     bidib.Address
	message  []byte
	actionID uint32
}

type nodeState struct {
	addr          bidib.Address
	receiveSeqnum uint8
	sendSeqnum    uint8
	stall         bool

	// currentMaxRespond is the sum of the reply budgets of all
	// entries in responseQueue.
	currentMaxRespond int

	stallAffected []bidib.Address
	responseQueue []*responseEntry
	messageQueue  []*messageEntry
}

// Table is the node state table. A single mutex guards the whole table
// and every state within it; stall drains touch multiple nodes at once,
// so per-node locking would not give the needed consistency.
type Table struct {
	mu     sync.Mutex
	nodes  map[bidib.Address]*nodeState
	buffer Buffer
	clock  clockwork.Clock
	logger *log.Logger
}

// NewTable creates an empty node state table writing admitted frames to
// buffer. A nil logger falls back to the logrus standard logger, a nil
// clock to the real clock.
func NewTable(buffer Buffer, logger *log.Logger, clock clockwork.Clock) *Table {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Table{
		nodes:  make(map[bidib.Address]*nodeState),
		buffer: buffer,
		clock:  clock,
		logger: logger,
	}
}

// query returns the state for addr, lazily registering it with default
// values on first reference. Callers must hold the table mutex.
func (t *Table) query(addr bidib.Address) *nodeState {
	state, ok := t.nodes[addr]
	if !ok {
		state = &nodeState{
			addr:          addr,
			receiveSeqnum: 0x01,
			sendSeqnum:    0x01,
		}
		t.nodes[addr] = state
		t.logger.Debugf("Add to node state table: %v", addr)
	}
	return state
}

func (t *Table) addResponse(state *nodeState, msgType uint8, maxResponse int, actionID uint32) {
	if maxResponse <= 0 {
		return
	}
	state.currentMaxRespond += maxResponse
	state.responseQueue = append(state.responseQueue, &responseEntry{
		msgType:  msgType,
		creation: t.clock.Now(),
		actionID: actionID,
	})
}

func (t *Table) addMessage(state *nodeState, addr bidib.Address, msgType uint8, message []byte, actionID uint32) {
	entry := &messageEntry{
		msgType:  msgType,
		addr:     addr,
		message:  append([]byte(nil), message...),
		actionID: actionID,
	}
	state.messageQueue = append(state.messageQueue, entry)
	t.logger.Debugf("Enqueued type: 0x%02x to: %v action id: %d", msgType, addr, actionID)
}

func containsAddr(queue []bidib.Address, addr bidib.Address) bool {
	for _, a := range queue {
		if a == addr {
			return true
		}
	}
	return false
}

// stallReady walks the address stack of addr from the deepest prefix
// towards the interface. A stalled prefix blocks the send; the blocked
// address is recorded in the prefix's stall affected queue (once) so
// that clearing the stall can re-drive exactly those nodes. Callers
// must hold the table mutex.
func (t *Table) stallReady(addr bidib.Address) bool {
	cur := addr
	for cur[0] != 0x00 {
		if state, ok := t.nodes[cur]; ok && state.stall {
			if !containsAddr(state.stallAffected, addr) {
				state.stallAffected = append(state.stallAffected, addr)
			}
			return false
		}
		zeroed := false
		for i := 3; i >= 1; i-- {
			if cur[i] != 0x00 {
				cur[i] = 0x00
				zeroed = true
				break
			}
		}
		if !zeroed {
			// first hop prefix already checked
			break
		}
	}
	return true
}

// TrySend admits message for transmission to addr, or defers it. A
// message is admitted when no ancestor is stalled, no prior message for
// the node is still queued and the node's reply budget can take the
// answer. On admission the expectation is registered and the frame is
// appended to the staging buffer; flushing is the caller's business.
// Deferred messages are copied to the node's message queue and sent by
// a later drain; TrySend then returns false.
func (t *Table) TrySend(addr bidib.Address, msgType uint8, message []byte, actionID uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.query(addr)
	maxResponse := responseInfoTable[msgType].maxResponse
	var status bool
	if t.stallReady(addr) && len(state.messageQueue) == 0 &&
		state.currentMaxRespond+maxResponse <= maxRespondBytes {
		t.addResponse(state, msgType, maxResponse, actionID)
		t.buffer.Append(message)
		status = true
	} else {
		t.addMessage(state, addr, msgType, message, actionID)
	}
	t.logger.Debugf("Used output buffer for %v is %d byte", addr, state.currentMaxRespond)
	return status
}

// tryQueuedMessages drains the message queue of state for as long as
// the node is ready and the head message fits the reply budget. The
// staging buffer is flushed exactly once, whether or not anything was
// drained. Callers must hold the table mutex.
func (t *Table) tryQueuedMessages(state *nodeState) {
	for t.stallReady(state.addr) && len(state.messageQueue) > 0 {
		queued := state.messageQueue[0]
		maxResponse := responseInfoTable[queued.msgType].maxResponse
		if state.currentMaxRespond+maxResponse > maxRespondBytes {
			break
		}
		t.addResponse(state, queued.msgType, maxResponse, queued.actionID)
		t.buffer.Append(queued.message)
		t.logger.Debugf("Dequeued type: 0x%02x to: %v action id: %d",
			queued.msgType, state.addr, queued.actionID)
		state.messageQueue = state.messageQueue[1:]
	}
	t.buffer.Flush()
}

// HandleResponse matches an incoming reply type against the node's
// oldest outstanding expectation. On a match the expectation is
// released, its buffer credit freed, deferred messages are drained and
// the host-assigned action id of the original command is returned.
// Expectations older than the expiration window are reaped on the way.
// Returns 0 when nothing matched.
func (t *Table) HandleResponse(addr bidib.Address, responseType uint8) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.nodes[addr]
	if !ok || len(state.responseQueue) == 0 {
		return 0
	}
	now := t.clock.Now()
	for len(state.responseQueue) > 0 {
		head := state.responseQueue[0]
		reaped := false
		for _, answer := range responseInfoTable[head.msgType].answers {
			if answer == responseType {
				// awaited answer matches -> extend free capacity
				state.responseQueue = state.responseQueue[1:]
				state.currentMaxRespond -= responseInfoTable[head.msgType].maxResponse
				t.tryQueuedMessages(state)
				t.logger.Debugf("Used output buffer for %v is %d byte",
					addr, state.currentMaxRespond)
				return head.actionID
			}
			if now.Sub(head.creation) >= responseExpiration {
				t.logger.Errorf("Response from: %v to type: 0x%02x with action id: %d "+
					"expected but not received", addr, head.msgType, head.actionID)
				state.responseQueue = state.responseQueue[1:]
				state.currentMaxRespond -= responseInfoTable[head.msgType].maxResponse
				reaped = true
				break
			}
		}
		if !reaped {
			break
		}
	}
	t.logger.Debugf("Used output buffer for %v is %d byte", addr, state.currentMaxRespond)
	return 0
}

// UpdateStall records a stall state change for addr. Status 0x00 clears
// the stall and re-drives every node that was blocked behind it; any
// other value sets the stall.
func (t *Table) UpdateStall(addr bidib.Address, stallStatus uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.query(addr)
	if stallStatus == 0x00 {
		state.stall = false
		t.logger.Warnf("Stall inactive for: %v", addr)
		for len(state.stallAffected) > 0 {
			affected := state.stallAffected[0]
			state.stallAffected = state.stallAffected[1:]
			if waiting, ok := t.nodes[affected]; ok {
				t.tryQueuedMessages(waiting)
			}
		}
	} else {
		state.stall = true
		t.logger.Warnf("Stall active for: %v", addr)
	}
}

func getAndIncrSeqnum(seqnum *uint8) uint8 {
	if *seqnum == 255 {
		*seqnum = 0x01
		return 255
	}
	cur := *seqnum
	*seqnum++
	return cur
}

// NextSendSeqnum returns the send sequence number to stamp on the next
// downstream message for addr and advances the counter. The sequence
// runs 1..255 and wraps back to 1; 0 is never produced.
func (t *Table) NextSendSeqnum(addr bidib.Address) uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return getAndIncrSeqnum(&t.query(addr).sendSeqnum)
}

// NextReceiveSeqnum returns the expected sequence number of the next
// upstream message from addr and advances the counter.
func (t *Table) NextReceiveSeqnum(addr bidib.Address) uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return getAndIncrSeqnum(&t.query(addr).receiveSeqnum)
}

// SetReceiveSeqnum overwrites the receive counter of addr, used to
// resync after a detected gap in upstream traffic.
func (t *Table) SetReceiveSeqnum(addr bidib.Address, seqnum uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.query(addr).receiveSeqnum = seqnum
}

// Reset purges every node from the table, dropping all queued messages
// and outstanding expectations. Nodes are recreated lazily with default
// state on next use.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for addr, state := range t.nodes {
		state.stallAffected = nil
		state.responseQueue = nil
		state.messageQueue = nil
		delete(t.nodes, addr)
	}
	t.logger.Info("Node state table reset")
}

// Close resets the table and releases it.
func (t *Table) Close() {
	t.Reset()
	t.mu.Lock()
	t.nodes = make(map[bidib.Address]*nodeState)
	t.mu.Unlock()
	t.logger.Info("Node state table freed")
}
