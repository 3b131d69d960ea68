package network

import (
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/eldara-server/internal/protocol"
)

type recordingHandler struct {
	connected    chan *Connection
	packets      chan protocol.Packet
	disconnected chan string
	fail         error
	echo         bool
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		connected:    make(chan *Connection, 1),
		packets:      make(chan protocol.Packet, 16),
		disconnected: make(chan string, 1),
	}
}

func (h *recordingHandler) OnConnect(c *Connection) { h.connected <- c }

func (h *recordingHandler) HandlePacket(c *Connection, p protocol.Packet) error {
	h.packets <- p
	if h.fail != nil {
		return h.fail
	}
	if req, ok := p.(*protocol.LoginRequest); ok && h.echo {
		c.Send(&protocol.LoginResponse{Result: protocol.Success, Message: req.Username})
	}
	return nil
}

func (h *recordingHandler) OnDisconnect(c *Connection, reason string) { h.disconnected <- reason }

func startPipe(t *testing.T, h *recordingHandler) (*Connection, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	c := NewConnection(42, server, h, ConnectionOptions{WriteTimeout: time.Second})
	go c.Serve()
	select {
	case <-h.connected:
	case <-time.After(time.Second):
		t.Fatal("OnConnect не вызван")
	}
	t.Cleanup(func() { client.Close() })
	return c, client
}

func writePacket(t *testing.T, w net.Conn, p protocol.Packet) {
	t.Helper()
	data, err := protocol.DefaultCodec().Encode(p, 1, time.Now())
	require.NoError(t, err)
	require.NoError(t, protocol.WriteFrame(w, data))
}

func waitReason(t *testing.T, h *recordingHandler) string {
	t.Helper()
	select {
	case r := <-h.disconnected:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("соединение не закрылось")
		return ""
	}
}

func TestConnectionRoundTrip(t *testing.T) {
	h := newRecordingHandler()
	h.echo = true
	c, client := startPipe(t, h)

	writePacket(t, client, &protocol.LoginRequest{Username: "sylwen", PasswordHash: "x", ClientVersion: "1.0"})

	frame, err := protocol.ReadFrame(client)
	require.NoError(t, err)
	p, env, err := protocol.DefaultCodec().Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), env.Sequence)
	resp, ok := p.(*protocol.LoginResponse)
	require.True(t, ok)
	assert.Equal(t, "sylwen", resp.Message)

	got := <-h.packets
	assert.Equal(t, protocol.TypeLoginRequest, got.Type())

	c.Close("тест")
	assert.Equal(t, "тест", waitReason(t, h))
	assert.True(t, c.Closed())
	assert.False(t, c.Send(&protocol.EntityDespawn{EntityID: 1}), "после закрытия отправка no-op")
}

func TestConnectionRejectsBadFrames(t *testing.T) {
	cases := map[string]uint32{
		"empty":     0,
		"oversized": protocol.MaxPacketSize + 1,
	}
	for name, length := range cases {
		t.Run(name, func(t *testing.T) {
			h := newRecordingHandler()
			c, client := startPipe(t, h)

			var header [4]byte
			binary.LittleEndian.PutUint32(header[:], length)
			_, err := client.Write(header[:])
			require.NoError(t, err)

			assert.Contains(t, waitReason(t, h), "кадрирования")
			assert.True(t, c.Closed())
			assert.Empty(t, h.packets)
		})
	}
}

func TestConnectionUnknownPacketDisconnects(t *testing.T) {
	h := newRecordingHandler()
	_, client := startPipe(t, h)

	env := protocol.Envelope{Type: protocol.PacketType(999), Body: []byte("{}")}
	require.NoError(t, protocol.WriteFrame(client, env.Marshal()))

	assert.Contains(t, waitReason(t, h), "некорректный пакет")
}

func TestConnectionHandlerErrorDisconnects(t *testing.T) {
	h := newRecordingHandler()
	h.fail = errors.New("не аутентифицирован")
	c, client := startPipe(t, h)

	writePacket(t, client, &protocol.ChatMessage{Channel: protocol.ChatSay, Message: "hi"})

	reason := waitReason(t, h)
	assert.Contains(t, reason, "не аутентифицирован")
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done не закрыт")
	}
}

func TestConnectionClientHangup(t *testing.T) {
	h := newRecordingHandler()
	_, client := startPipe(t, h)

	require.NoError(t, client.Close())
	assert.Equal(t, "клиент закрыл соединение", waitReason(t, h))
}
