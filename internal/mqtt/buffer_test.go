package mqtt

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushN(rb *ringBuffer, from, to int) {
	for i := from; i < to; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
}

func payloadBytes(msgs []bufferedMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10, zerolog.Nop())
	assert.Nil(t, rb.drainAll())
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10, zerolog.Nop())
	pushN(rb, 0, 5)

	assert.Equal(t, []byte{0, 1, 2, 3, 4}, payloadBytes(rb.drainAll()))
	assert.Nil(t, rb.drainAll(), "second drain should be empty")
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	rb := newRingBuffer(5, zerolog.Nop())
	pushN(rb, 0, 8)

	assert.Equal(t, 5, rb.len())
	assert.Equal(t, []byte{3, 4, 5, 6, 7}, payloadBytes(rb.drainAll()))
}

func TestRingBufferWarnsOncePerOverflow(t *testing.T) {
	var out bytes.Buffer
	rb := newRingBuffer(2, zerolog.New(&out))

	pushN(rb, 0, 6)
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("dropping oldest")))

	rb.drainAll()
	pushN(rb, 0, 3)
	assert.Equal(t, 2, bytes.Count(out.Bytes(), []byte("dropping oldest")))
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5, zerolog.Nop())

	pushN(rb, 0, 3)
	require.Len(t, rb.drainAll(), 3)

	pushN(rb, 10, 14)
	assert.Equal(t, []byte{10, 11, 12, 13}, payloadBytes(rb.drainAll()))
}

func TestRingBufferMinimumCapacity(t *testing.T) {
	rb := newRingBuffer(0, zerolog.Nop())
	pushN(rb, 0, 3)
	assert.Equal(t, []byte{2}, payloadBytes(rb.drainAll()))
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10, zerolog.Nop())
	rb.push(bufferedMsg{
		topic:    "sensors/gpio/system",
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	})

	got := rb.drainAll()
	require.Len(t, got, 1)
	assert.Equal(t, "sensors/gpio/system", got[0].topic)
	assert.Equal(t, `{"test":true}`, string(got[0].payload))
	assert.Equal(t, byte(1), got[0].qos)
	assert.True(t, got[0].retained)
}
