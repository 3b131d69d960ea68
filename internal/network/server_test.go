package network

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/eldara-server/internal/protocol"
)

func startServer(t *testing.T, h Handler, maxPlayers int) *GameServer {
	t.Helper()
	srv := NewGameServer(ServerConfig{
		TCPAddr:      "127.0.0.1:0",
		MaxPlayers:   maxPlayers,
		WriteTimeout: time.Second,
	}, h, nil)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return srv
}

func TestGameServerLoginRoundTrip(t *testing.T) {
	h := newRecordingHandler()
	h.echo = true
	srv := startServer(t, h, 10)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	writePacket(t, conn, &protocol.LoginRequest{Username: "thalor", PasswordHash: "pw", ClientVersion: "1.0"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	frame, err := protocol.ReadFrame(conn)
	require.NoError(t, err)
	p, _, err := protocol.DefaultCodec().Decode(frame)
	require.NoError(t, err)
	resp, ok := p.(*protocol.LoginResponse)
	require.True(t, ok)
	assert.Equal(t, protocol.Success, resp.Result)
	assert.Equal(t, "thalor", resp.Message)

	assert.Eventually(t, func() bool { return srv.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestGameServerRejectsOverCapacity(t *testing.T) {
	h := newRecordingHandler()
	srv := startServer(t, h, 1)

	first, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer first.Close()
	<-h.connected

	second, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = second.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF, "второе соединение закрыто сервером")
	assert.EqualValues(t, 1, srv.Metrics().GetSnapshot()["rejected_connections"])
}

func TestGameServerStopClosesConnections(t *testing.T) {
	h := newRecordingHandler()
	srv := startServer(t, h, 10)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	<-h.connected

	srv.Stop()
	assert.Equal(t, "остановка сервера", waitReason(t, h))
	assert.Zero(t, srv.Count())

	_, err = net.DialTimeout("tcp", srv.Addr().String(), 200*time.Millisecond)
	assert.Error(t, err)
}
