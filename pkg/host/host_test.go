package host

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bidib "github.com/trinnguyen/libbidib"
	"github.com/trinnguyen/libbidib/pkg/board"
	"github.com/trinnguyen/libbidib/pkg/serial"
)

type nodeHandler func(msg bidib.Message)

func (f nodeHandler) Handle(msg bidib.Message) { f(msg) }

func quietLogger() *log.Logger {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger
}

func upstreamFrame(addr bidib.Address, msgType uint8, data ...byte) []byte {
	wire := addr.Wire()
	frame := []byte{uint8(len(wire) + 2 + len(data))}
	frame = append(frame, wire...)
	// seqnum 0: the fake node opts out of sequence tracking
	frame = append(frame, 0, msgType)
	return append(frame, data...)
}

// testRig is a host wired back to back with a scripted node.
type testRig struct {
	host     *Host
	nodeLink *serial.Link
	rx       chan bidib.Message
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	portA, portB := serial.NewVirtualPair()
	registry := board.NewRegistry()
	registry.Add(board.Board{Name: "master", Addr: bidib.RootAddress, UniqueID: 0x01, Connected: true})
	registry.Add(board.Board{Name: "onecontrol", Addr: bidib.NewAddress(1), UniqueID: 0x02, Connected: true})
	registry.Add(board.Board{Name: "lost", Addr: bidib.NewAddress(9), UniqueID: 0x03, Connected: false})

	h := NewHost(portA, registry, quietLogger(), clockwork.NewFakeClock())
	rx := make(chan bidib.Message, 32)
	h.SetCallback(func(msg bidib.Message) { rx <- msg })

	nodeLink := serial.NewLink(portB, quietLogger())
	nodeLink.Subscribe(nodeHandler(func(msg bidib.Message) {
		// script: answer the admin commands like a real node would
		switch msg.Type {
		case bidib.MsgSysPing:
			nodeLink.Append(upstreamFrame(msg.Addr, bidib.MsgSysPong, msg.Data...))
			nodeLink.Flush()
		case bidib.MsgSysIdentify:
			nodeLink.Append(upstreamFrame(msg.Addr, bidib.MsgSysIdentifyState, msg.Data...))
			nodeLink.Flush()
		case bidib.MsgSysGetSwVersion:
			nodeLink.Append(upstreamFrame(msg.Addr, bidib.MsgSysSwVersion, 1, 2, 3))
			nodeLink.Flush()
		}
	}))
	require.NoError(t, nodeLink.Connect())
	require.NoError(t, h.Connect())
	t.Cleanup(func() {
		h.Disconnect()
		nodeLink.Disconnect()
	})
	return &testRig{host: h, nodeLink: nodeLink, rx: rx}
}

func (r *testRig) receive(t *testing.T) bidib.Message {
	t.Helper()
	select {
	case msg := <-r.rx:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for upstream message")
		return bidib.Message{}
	}
}

func TestPingRoundTrip(t *testing.T) {
	rig := newTestRig(t)

	actionID, err := rig.host.Ping("onecontrol", 0xAB)
	require.NoError(t, err)
	require.NotZero(t, actionID)

	msg := rig.receive(t)
	assert.Equal(t, bidib.MsgSysPong, msg.Type)
	assert.Equal(t, bidib.NewAddress(1), msg.Addr)
	assert.Equal(t, []byte{0xAB}, msg.Data)
	assert.Equal(t, actionID, msg.ActionID)
}

func TestIdentifyRoundTrip(t *testing.T) {
	rig := newTestRig(t)

	actionID, err := rig.host.Identify("master", 0x01)
	require.NoError(t, err)

	msg := rig.receive(t)
	assert.Equal(t, bidib.MsgSysIdentifyState, msg.Type)
	assert.Equal(t, []byte{0x01}, msg.Data)
	assert.Equal(t, actionID, msg.ActionID)
}

func TestGetSoftwareVersion(t *testing.T) {
	rig := newTestRig(t)

	actionID, err := rig.host.GetSoftwareVersion("onecontrol")
	require.NoError(t, err)

	msg := rig.receive(t)
	assert.Equal(t, bidib.MsgSysSwVersion, msg.Type)
	assert.Equal(t, []byte{1, 2, 3}, msg.Data)
	assert.Equal(t, actionID, msg.ActionID)
}

func TestCommandArgumentErrors(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.host.Ping("", 0x00)
	assert.ErrorIs(t, err, bidib.ErrIllegalArgument)
	_, err = rig.host.Ping("ghost", 0x00)
	assert.ErrorIs(t, err, bidib.ErrUnknownBoard)
	_, err = rig.host.Identify("lost", 0x01)
	assert.ErrorIs(t, err, bidib.ErrNotConnected)
}

func TestStallDefersAndRedrives(t *testing.T) {
	rig := newTestRig(t)
	parent := bidib.NewAddress(1)

	// node reports a stall for the board
	rig.nodeLink.Append(upstreamFrame(parent, bidib.MsgStall, 0x01))
	rig.nodeLink.Flush()
	msg := rig.receive(t)
	require.Equal(t, bidib.MsgStall, msg.Type)

	// the ping is deferred now, nothing reaches the node
	actionID, err := rig.host.Ping("onecontrol", 0x55)
	require.NoError(t, err)
	select {
	case msg := <-rig.rx:
		t.Fatalf("unexpected upstream message during stall: 0x%02x", msg.Type)
	case <-time.After(100 * time.Millisecond):
	}

	// clearing the stall re-drives the deferred ping
	rig.nodeLink.Append(upstreamFrame(parent, bidib.MsgStall, 0x00))
	rig.nodeLink.Flush()
	msg = rig.receive(t)
	require.Equal(t, bidib.MsgStall, msg.Type)
	msg = rig.receive(t)
	assert.Equal(t, bidib.MsgSysPong, msg.Type)
	assert.Equal(t, []byte{0x55}, msg.Data)
	assert.Equal(t, actionID, msg.ActionID)
}

func TestActionIDsAreMonotone(t *testing.T) {
	rig := newTestRig(t)
	first := rig.host.NextActionID()
	second := rig.host.NextActionID()
	assert.Greater(t, second, first)
}
