package probe

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// handshake is what the mock Minecraft server decoded from the client.
type handshake struct {
	host      string
	protocol  uint64
	nextState uint64
	port      uint16
	statusReq []byte
}

// mockMinecraftServer accepts TCP connections, decodes the handshake and status request,
// then answers with reply (nil means stay silent until the client hangs up).
type mockMinecraftServer struct {
	listener net.Listener
	reply    func() []byte
	got      chan handshake
	// holdOpen keeps the connection open after the reply until the client hangs up
	holdOpen bool
}

func newMockMinecraftServer(t *testing.T, reply func() []byte) *mockMinecraftServer {
	t.Helper()
	return startMockMinecraftServer(t, reply, false)
}

// newHoldingMinecraftServer answers like newMockMinecraftServer but never closes first.
func newHoldingMinecraftServer(t *testing.T, reply func() []byte) *mockMinecraftServer {
	t.Helper()
	return startMockMinecraftServer(t, reply, true)
}

func startMockMinecraftServer(t *testing.T, reply func() []byte, holdOpen bool) *mockMinecraftServer {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &mockMinecraftServer{listener: l, reply: reply, got: make(chan handshake, 16), holdOpen: holdOpen}
	go s.serve()
	t.Cleanup(func() { _ = l.Close() })

	return s
}

func (s *mockMinecraftServer) host() string { return "127.0.0.1" }

func (s *mockMinecraftServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *mockMinecraftServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *mockMinecraftServer) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	r := bufio.NewReader(conn)

	hs, err := readFrame(r)
	if err != nil {
		return
	}
	status, err := readFrame(r)
	if err != nil {
		return
	}

	got, ok := decodeHandshake(hs)
	if ok {
		got.statusReq = status
		s.got <- got
	}

	if s.reply == nil {
		// hold the connection open until the client gives up
		_, _ = io.Copy(io.Discard, r)
		return
	}

	_, _ = conn.Write(s.reply())

	if s.holdOpen {
		_, _ = io.Copy(io.Discard, r)
	}
}

// readFrame reads a VarInt length-prefixed frame and returns its body.
func readFrame(r *bufio.Reader) ([]byte, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	body := make([]byte, length)
	_, err = io.ReadFull(r, body)
	return body, err
}

func decodeHandshake(body []byte) (handshake, bool) {
	var hs handshake
	if len(body) == 0 || body[0] != 0x00 {
		return hs, false
	}
	body = body[1:]

	protocol, n := binary.Uvarint(body)
	if n <= 0 {
		return hs, false
	}
	hs.protocol = protocol
	body = body[n:]

	hostLen, n := binary.Uvarint(body)
	if n <= 0 || len(body) < n+int(hostLen)+2 {
		return hs, false
	}
	body = body[n:]
	hs.host = string(body[:hostLen])
	body = body[hostLen:]

	hs.port = binary.BigEndian.Uint16(body[:2])
	body = body[2:]

	next, n := binary.Uvarint(body)
	if n <= 0 {
		return hs, false
	}
	hs.nextState = next

	return hs, true
}

// statusPacket frames a JSON document the way a Minecraft server does:
// packet length, packet id 0, string length, document.
func statusPacket(doc string) []byte {
	body := []byte{0x00}
	body = binary.AppendUvarint(body, uint64(len(doc)))
	body = append(body, doc...)

	return append(binary.AppendUvarint(nil, uint64(len(body))), body...)
}

// mockSourceServer answers every UDP datagram with reply (nil means never answer).
type mockSourceServer struct {
	conn    net.PacketConn
	reply   []byte
	mu      sync.Mutex
	request []byte
}

func newMockSourceServer(t *testing.T, reply []byte) *mockSourceServer {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &mockSourceServer{conn: conn, reply: reply}
	go s.serve()
	t.Cleanup(func() { _ = conn.Close() })

	return s
}

func (s *mockSourceServer) port() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

func (s *mockSourceServer) lastRequest() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request
}

func (s *mockSourceServer) serve() {
	buf := make([]byte, 1500)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.request = append([]byte(nil), buf[:n]...)
		s.mu.Unlock()

		if s.reply != nil {
			_, _ = s.conn.WriteTo(s.reply, addr)
		}
	}
}

// a2sInfoReply builds a well-formed A2S_INFO response:
//
//	FF FF FF FF | 49 (type 'I') | 11 (protocol 17)   6-byte prefix skipped by parseInfo
//	name\0 map\0 folder\0 game\0
//	DA 02 (app id 730, little endian)
//	players | max players | bots | server type | environment | visibility | vac
//	version\0
func a2sInfoReply(name, mapName string, players, maxPlayers byte) []byte {
	b := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x49, 0x11}
	for _, s := range []string{name, mapName, "cstrike", "Counter-Strike 2"} {
		b = append(b, s...)
		b = append(b, 0x00)
	}
	b = append(b, 0xDA, 0x02) // app id 730
	b = append(b, players, maxPlayers, 0x00, 'd', 'l', 0x00, 0x01)
	b = append(b, "1.40.0.0"...)
	return append(b, 0x00)
}

// closedPort returns a local port with nothing listening on it.
func closedPort(t *testing.T, network string) int {
	t.Helper()

	switch network {
	case "tcp":
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := l.Addr().(*net.TCPAddr).Port
		require.NoError(t, l.Close())
		return port
	default:
		c, err := net.ListenPacket("udp", "127.0.0.1:0")
		require.NoError(t, err)
		port := c.LocalAddr().(*net.UDPAddr).Port
		require.NoError(t, c.Close())
		return port
	}
}
