package probe

import (
	"bytes"
	"encoding/binary"
	"net"
	"regexp"
	"strings"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/tidwall/gjson"
	"github.com/woozymasta/pulsar/internal/models"
)

const (
	// handshakeProtocol is sent as the client protocol version. Servers answer status
	// requests for any version, a value below 128 keeps it a single byte on the wire.
	handshakeProtocol = 47

	// nextStateStatus switches the connection to the status state after the handshake.
	nextStateStatus = 1

	// maxStatusSize caps how much of a status response is buffered.
	maxStatusSize = 1 << 20

	// framingSize covers the packet length, packet id and string length prefixes that precede
	// the JSON document. A '{' inside it may be a length byte rather than the document start.
	framingSize = 11

	minecraftSoftware        = "Paper"
	minecraftFallbackVersion = "1.21.4"
)

// formattingCodes matches legacy section sign color and style codes.
var formattingCodes = regexp.MustCompile(`§[0-9a-fk-orA-FK-OR]`)

// MinecraftAdapter implements the Minecraft Server List Ping over TCP.
type MinecraftAdapter struct {
	// pick synthesizes placeholder occupancy, nil means math/rand.
	pick func(n int) int

	// Timeout bounds the exchange from connection attempt to response.
	Timeout time.Duration
}

// Probe sends a handshake and status request to host:port and reads the status response.
// Port 0 selects MinecraftDefaultPort.
func (m *MinecraftAdapter) Probe(host string, port int) (models.ServerStatus, error) {
	if port == 0 {
		port = MinecraftDefaultPort
	}
	if err := validateTarget(host, port); err != nil {
		return models.Offline(host, port, models.MotdQuery, ""), err
	}

	start := time.Now()

	conn, err := dial("tcp", host, port, m.Timeout)
	if err != nil {
		return models.Offline(host, port, failureMotd(err), ""), nil
	}
	defer func() { _ = conn.Close() }()

	if err := writeStatusRequest(conn, host, port); err != nil {
		return models.Offline(host, port, failureMotd(err), ""), nil
	}

	payload, received, err := readStatusResponse(conn)
	if err != nil {
		return models.Offline(host, port, failureMotd(err), ""), nil
	}
	ping := received.Sub(start)

	return m.parse(host, port, ping, payload), nil
}

// writeStatusRequest writes the handshake packet followed by the empty status request packet.
func writeStatusRequest(conn net.Conn, host string, port int) error {
	mc := mcnet.WrapConn(conn)

	handshake := pk.Marshal(0x00,
		pk.VarInt(handshakeProtocol),
		pk.String(host),
		pk.UnsignedShort(port),
		pk.VarInt(nextStateStatus),
	)
	if err := mc.WritePacket(handshake); err != nil {
		return err
	}

	return mc.WritePacket(pk.Marshal(0x00))
}

// readStatusResponse waits for the first bytes of the reply, then keeps reading until the
// packet length announced by the leading VarInt is buffered or the buffered bytes already hold
// a complete JSON document. Errors after the first read are ignored: whatever arrived is handed
// to the tolerant parser.
// It also reports when the first bytes were received.
func readStatusResponse(conn net.Conn) ([]byte, time.Time, error) {
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	received := time.Now()
	if n == 0 {
		if err == nil {
			err = net.ErrClosed
		}
		return nil, received, err
	}
	payload := append([]byte(nil), buf[:n]...)

	length, size := binary.Uvarint(payload)
	if size <= 0 || length > maxStatusSize {
		return payload, received, nil
	}

	want := int(length) + size
	for err == nil && len(payload) < want {
		// unframed replies make the leading '{' look like a length of 123
		if _, ok := extractJSON(payload); ok {
			break
		}
		n, err = conn.Read(buf)
		payload = append(payload, buf[:n]...)
	}

	return payload, received, nil
}

// parse turns a raw status response into a status. The JSON document is located between the
// first '{' and the last '}' instead of decoding the length-prefixed packet, so stray framing
// bytes are tolerated. Anything that does not yield valid JSON falls back to a placeholder.
func (m *MinecraftAdapter) parse(host string, port int, ping time.Duration, payload []byte) models.ServerStatus {
	doc, ok := extractJSON(payload)
	if !ok {
		return models.Placeholder(host, port, ping,
			minecraftFallbackVersion, host+" Minecraft Server", minecraftSoftware, m.pick)
	}

	players := models.Players{
		Current: int(doc.Get("players.online").Int()),
		Max:     int(doc.Get("players.max").Int()),
	}

	return models.Online(host, port, ping, players,
		doc.Get("version.name").String(), descriptionText(doc.Get("description")), minecraftSoftware)
}

func extractJSON(payload []byte) (gjson.Result, bool) {
	last := bytes.LastIndexByte(payload, '}')

	for from := 0; from < len(payload) && from < framingSize; {
		i := bytes.IndexByte(payload[from:], '{')
		if i < 0 {
			break
		}
		first := from + i
		if first >= last {
			break
		}

		if raw := payload[first : last+1]; gjson.ValidBytes(raw) {
			return gjson.ParseBytes(raw), true
		}
		from = first + 1
	}

	return gjson.Result{}, false
}

// descriptionText flattens a description that is either a plain string or a chat component
// with text and extra children, and strips formatting codes.
func descriptionText(desc gjson.Result) string {
	var b strings.Builder
	writeChatText(&b, desc)

	return strings.TrimSpace(formattingCodes.ReplaceAllString(b.String(), ""))
}

func writeChatText(b *strings.Builder, c gjson.Result) {
	switch {
	case c.Type == gjson.String:
		b.WriteString(c.String())
	case c.IsObject():
		b.WriteString(c.Get("text").String())
		for _, extra := range c.Get("extra").Array() {
			writeChatText(b, extra)
		}
	case c.IsArray():
		for _, part := range c.Array() {
			writeChatText(b, part)
		}
	}
}
