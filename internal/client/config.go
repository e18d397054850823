package client

// Config carries everything the client needs to connect and run. The
// CLI fills it from flags; tests construct it directly.
type Config struct {
	Host string
	Port int

	Name     string
	Room     string
	Token    *string
	Renderer string

	// BufferSize is the requested local scrollback; the server clamps
	// and echoes the effective value in the handshake reply.
	BufferSize int

	// QuietReconnect replaces the reconnect error detail with a short
	// status line.
	QuietReconnect bool

	// HistoryFile and HistoryPassphrase enable the encrypted local
	// transcript. Both must be set together.
	HistoryFile       string
	HistoryPassphrase string

	TLS         bool
	TLSInsecure bool
	CAFile      string
}
