package probe

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/pulsar/internal/models"
)

func TestMinecraftAdapter_Probe(t *testing.T) {
	doc := `{"players":{"online":12,"max":50},"version":{"name":"1.20.1"},"description":"Hi"}`
	server := newMockMinecraftServer(t, func() []byte { return statusPacket(doc) })

	m := &MinecraftAdapter{Timeout: 2 * time.Second}
	status, err := m.Probe(server.host(), server.port())
	require.NoError(t, err)

	assert.True(t, status.Online)
	assert.Equal(t, models.Players{Current: 12, Max: 50}, status.Players)
	assert.Equal(t, "1.20.1", status.Version)
	assert.Equal(t, "Hi", status.Motd)
	assert.Equal(t, "Paper", status.Software)
	assert.Equal(t, server.host(), status.Hostname)
	assert.Equal(t, server.port(), status.Port)
	assert.GreaterOrEqual(t, status.Ping, 0)
	assert.Less(t, status.Ping, models.PingUnreachable)
}

func TestMinecraftAdapter_Handshake(t *testing.T) {
	server := newMockMinecraftServer(t, func() []byte { return statusPacket(`{}`) })

	m := &MinecraftAdapter{Timeout: 2 * time.Second}
	_, err := m.Probe(server.host(), server.port())
	require.NoError(t, err)

	select {
	case hs := <-server.got:
		assert.Equal(t, uint64(handshakeProtocol), hs.protocol)
		assert.Equal(t, server.host(), hs.host)
		assert.Equal(t, uint16(server.port()), hs.port)
		assert.Equal(t, uint64(1), hs.nextState)
		assert.Equal(t, []byte{0x00}, hs.statusReq)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive a handshake")
	}
}

func TestMinecraftAdapter_DescriptionObject(t *testing.T) {
	doc := `{"version":{"name":"Paper 1.21.1","protocol":767},` +
		`"players":{"max":100,"online":3,"sample":[{"name":"Notch","id":"069a79f4-44e9-4726-a5be-fca90e38aaf5"}]},` +
		`"description":{"text":"§aWelcome ","extra":[{"text":"to ","bold":true},"§lthe server"]}}`
	server := newMockMinecraftServer(t, func() []byte { return statusPacket(doc) })

	m := &MinecraftAdapter{Timeout: 2 * time.Second}
	status, err := m.Probe(server.host(), server.port())
	require.NoError(t, err)

	assert.True(t, status.Online)
	assert.Equal(t, "Welcome to the server", status.Motd)
	assert.Equal(t, "Paper 1.21.1", status.Version)
	assert.Equal(t, models.Players{Current: 3, Max: 100}, status.Players)
}

func TestMinecraftAdapter_LargeResponse(t *testing.T) {
	favicon := "data:image/png;base64," + strings.Repeat("A", 20000)
	doc := `{"players":{"online":1,"max":2},"version":{"name":"1.21"},"description":{"text":"big"},"favicon":"` + favicon + `"}`
	server := newMockMinecraftServer(t, func() []byte { return statusPacket(doc) })

	m := &MinecraftAdapter{Timeout: 2 * time.Second}
	status, err := m.Probe(server.host(), server.port())
	require.NoError(t, err)

	assert.True(t, status.Online)
	assert.Equal(t, "big", status.Motd)
	assert.Equal(t, models.Players{Current: 1, Max: 2}, status.Players)
}

func TestMinecraftAdapter_UnframedReplyOnOpenConnection(t *testing.T) {
	doc := `{"players":{"online":12,"max":50},"version":{"name":"1.20.1"},"description":"Hi"}`
	server := newHoldingMinecraftServer(t, func() []byte { return []byte(doc) })

	m := &MinecraftAdapter{Timeout: 5 * time.Second}
	start := time.Now()
	status, err := m.Probe(server.host(), server.port())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second, "must resolve once the document arrived")
	assert.True(t, status.Online)
	assert.Equal(t, models.Players{Current: 12, Max: 50}, status.Players)
	assert.Equal(t, "Hi", status.Motd)
}

func TestMinecraftAdapter_FramedReplyOnOpenConnection(t *testing.T) {
	doc := `{"players":{"online":4,"max":20},"version":{"name":"1.21"},"description":"Open"}`
	server := newHoldingMinecraftServer(t, func() []byte { return statusPacket(doc) })

	m := &MinecraftAdapter{Timeout: 5 * time.Second}
	start := time.Now()
	status, err := m.Probe(server.host(), server.port())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "Open", status.Motd)
}

func TestMinecraftAdapter_MalformedPayload(t *testing.T) {
	server := newMockMinecraftServer(t, func() []byte { return []byte("\x05\x00garbage{not json") })

	m := &MinecraftAdapter{Timeout: 2 * time.Second, pick: func(int) int { return 0 }}
	status, err := m.Probe(server.host(), server.port())
	require.NoError(t, err)

	assert.True(t, status.Online, "any reply counts as online")
	assert.Equal(t, "1.21.4", status.Version)
	assert.Equal(t, "Paper", status.Software)
	assert.Contains(t, status.Motd, server.host())
	assert.Equal(t, models.PlaceholderMinPlayers, status.Players.Current)
	assert.Equal(t, models.PlaceholderMaxPlayers, status.Players.Max)
	assert.Less(t, status.Ping, models.PingUnreachable)
}

func TestMinecraftAdapter_Silent(t *testing.T) {
	server := newMockMinecraftServer(t, nil)

	m := &MinecraftAdapter{Timeout: 300 * time.Millisecond}
	start := time.Now()
	status, err := m.Probe(server.host(), server.port())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, status.Online)
	assert.Equal(t, models.MotdOffline, status.Motd)
	assert.Equal(t, models.PingUnreachable, status.Ping)
	assert.Equal(t, models.Players{}, status.Players)
}

func TestMinecraftAdapter_ConnectionRefused(t *testing.T) {
	port := closedPort(t, "tcp")

	m := &MinecraftAdapter{Timeout: 2 * time.Second}
	status, err := m.Probe("127.0.0.1", port)
	require.NoError(t, err)

	assert.Equal(t, models.ServerStatus{
		Online:   false,
		Players:  models.Players{},
		Version:  models.UnknownValue,
		Motd:     models.MotdFailed,
		Ping:     models.PingUnreachable,
		Hostname: "127.0.0.1",
		Port:     port,
		Software: models.UnknownValue,
	}, status)
}

func TestMinecraftAdapter_InvalidInput(t *testing.T) {
	m := &MinecraftAdapter{Timeout: time.Second}

	status, err := m.Probe("", 25565)
	assert.Error(t, err)
	assert.False(t, status.Online)

	status, err = m.Probe("127.0.0.1", 70000)
	assert.Error(t, err)
	assert.Equal(t, 70000, status.Port)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		ok      bool
	}{
		{name: "framed", payload: statusPacket(`{"a":1}`), ok: true},
		{name: "bare", payload: []byte(`{"a":1}`), ok: true},
		{name: "length byte is a brace", payload: statusPacket(`{"d":"` + strings.Repeat("x", 115) + `"}`), ok: true},
		{name: "no braces", payload: []byte("hello"), ok: false},
		{name: "reversed braces", payload: []byte("}{"), ok: false},
		{name: "truncated", payload: []byte(`{"a":[1,2}`), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := extractJSON(tt.payload)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
