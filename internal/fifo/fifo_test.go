package fifo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFifoWrite(t *testing.T) {
	fifo := NewFifo(100)
	res := fifo.Write([]byte{1, 2, 3, 4, 5})
	assert.Equal(t, 5, res)
	assert.Equal(t, 5, fifo.GetOccupied())
	res = fifo.Write(make([]byte, 500))
	assert.Equal(t, 94, res)
	res = fifo.Write([]byte{1})
	assert.Equal(t, 0, res)
	// Free up some space by reading then re writing
	fifo.Read(make([]byte, 10))
	res = fifo.Write(make([]byte, 10))
	assert.Equal(t, 10, res)
}

func TestFifoRead(t *testing.T) {
	fifo := NewFifo(100)
	receiveBuffer := make([]byte, 10)
	res := fifo.Read(receiveBuffer)
	assert.Equal(t, 0, res)
	res = fifo.Write([]byte{1, 2, 3, 4})
	assert.Equal(t, 4, res)
	res = fifo.Read(receiveBuffer)
	assert.Equal(t, 4, res)
	assert.Equal(t, []byte{1, 2, 3, 4}, receiveBuffer[:res])
	assert.Equal(t, 0, fifo.GetOccupied())
}
