package client

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/amariwan/cmd-chat/internal/crypto"
	"github.com/amariwan/cmd-chat/internal/protocol"
	"github.com/amariwan/cmd-chat/internal/sanitize"
)

const (
	maxSendFileSize   = 10 * 1024 * 1024
	reconnectBackoff  = 1 * time.Second
	maxReconnectDelay = 30 * time.Second
)

// Client is the interactive chat endpoint: it keeps one encrypted
// session alive with automatic reconnect, renders inbound payloads,
// and turns stdin lines into chat messages and commands.
type Client struct {
	cfg      *Config
	logger   zerolog.Logger
	renderer Renderer
	files    *TransferManager
	history  *History

	// name and room track the negotiated identity across reconnects, so
	// a /nick or /join survives a dropped connection.
	name string
	room string

	// sendMu guards conn and cipher; every outbound frame serializes here.
	sendMu sync.Mutex
	conn   net.Conn
	cipher *crypto.SymmetricCipher

	bufferSize int
	messages   []protocol.Payload

	input io.Reader
	lines chan string

	// historyCh decouples transcript persistence from the receive loop;
	// a dedicated worker drains it so slow disk writes never stall
	// rendering.
	historyCh chan protocol.Payload
}

// New builds a client from its configuration.
func New(cfg *Config, logger zerolog.Logger) (*Client, error) {
	renderer, err := NewRenderer(cfg.Renderer)
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:        cfg,
		logger:     logger.With().Str("component", "client").Logger(),
		renderer:   renderer,
		files:      NewTransferManager(""),
		name:       sanitize.Name(cfg.Name),
		room:       sanitize.Room(cfg.Room),
		bufferSize: cfg.BufferSize,
		input:      os.Stdin,
		lines:      make(chan string),
	}
	if cfg.HistoryFile != "" && cfg.HistoryPassphrase != "" {
		c.history = NewHistory(cfg.HistoryFile, cfg.HistoryPassphrase)
		c.historyCh = make(chan protocol.Payload, 256)
		go c.historyWorker()
	}
	return c, nil
}

// historyWorker persists transcript entries off the receive loop. A
// failed write loses that entry; the session carries on.
func (c *Client) historyWorker() {
	for p := range c.historyCh {
		if err := c.history.Append(p); err != nil {
			c.logger.Warn().Err(err).Msg("history append failed")
		}
	}
}

// Run connects and keeps the session alive with exponential backoff
// until ctx is cancelled, stdin closes, or the user quits.
func (c *Client) Run(ctx context.Context) error {
	go c.readInput()

	var delay backoff
	for {
		connected, done, err := c.connectAndRun(ctx)
		if done || ctx.Err() != nil {
			break
		}
		if connected {
			// A completed handshake means the server was healthy again;
			// later drops start the ladder from the bottom.
			delay.reset()
		}
		if err != nil {
			c.reconnectNotice(err, delay.current())
		}
		select {
		case <-ctx.Done():
			fmt.Println("Client session terminated.")
			return nil
		case <-time.After(delay.current()):
		}
		delay.advance()
	}
	fmt.Println("Client session terminated.")
	return nil
}

// backoff is the reconnect delay ladder: doubling per failed attempt,
// capped at maxReconnectDelay, reset once a handshake completes.
type backoff struct {
	delay time.Duration
}

func (b *backoff) current() time.Duration {
	if b.delay == 0 {
		b.delay = reconnectBackoff
	}
	return b.delay
}

func (b *backoff) advance() {
	next := b.current() * 2
	if next > maxReconnectDelay {
		next = maxReconnectDelay
	}
	b.delay = next
}

func (b *backoff) reset() {
	b.delay = reconnectBackoff
}

// readInput feeds stdin lines into the lines channel for the lifetime
// of the process. Closing the channel signals end of input.
func (c *Client) readInput() {
	scanner := bufio.NewScanner(c.input)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}
	close(c.lines)
}

// connectAndRun performs one full connection lifecycle. It reports
// connected=true once the handshake completed, and done=true when the
// client should not reconnect.
func (c *Client) connectAndRun(ctx context.Context) (connected, done bool, err error) {
	conn, err := dial(c.cfg)
	if err != nil {
		return false, false, err
	}

	cipher, reply, err := performHandshake(conn, c.cfg, c.name, c.room)
	if err != nil {
		_ = conn.Close()
		// A rejected handshake will not succeed on retry.
		if strings.Contains(err.Error(), "handshake rejected") {
			fmt.Println(err.Error())
			return false, true, nil
		}
		return false, false, err
	}

	c.adoptSession(conn, cipher, reply)
	defer c.dropSession()

	c.showWelcome()
	_ = c.sendEncrypted(protocol.Payload{Type: protocol.TypeSystem, Message: c.name + " connected."})

	recvDone := make(chan error, 1)
	go func() { recvDone <- c.recvLoop(conn, cipher) }()

	for {
		select {
		case <-ctx.Done():
			_ = c.sendEncrypted(protocol.Payload{Type: protocol.TypeSystem, Message: c.name + " disconnected."})
			return true, true, nil
		case err := <-recvDone:
			return true, false, err
		case line, ok := <-c.lines:
			if !ok {
				_ = c.sendEncrypted(protocol.Payload{Type: protocol.TypeSystem, Message: c.name + " disconnected."})
				return true, true, nil
			}
			line = strings.TrimRight(line, "\n")
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "/") {
				if quit := c.handleCommand(line); quit {
					return true, true, nil
				}
				continue
			}
			if err := c.sendEncrypted(protocol.Payload{Type: protocol.TypeChat, Message: line}); err != nil {
				return true, false, err
			}
		}
	}
}

func (c *Client) adoptSession(conn net.Conn, cipher *crypto.SymmetricCipher, reply *protocol.HandshakeOK) {
	c.sendMu.Lock()
	c.conn = conn
	c.cipher = cipher
	c.sendMu.Unlock()

	c.room = reply.Room
	if reply.BufferSize > 0 {
		c.bufferSize = reply.BufferSize
		if len(c.messages) > c.bufferSize {
			c.messages = c.messages[len(c.messages)-c.bufferSize:]
		}
	}
	if renderer, err := NewRenderer(reply.Renderer); err == nil {
		c.renderer = renderer
	}
}

func (c *Client) dropSession() {
	c.sendMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.cipher = nil
	c.sendMu.Unlock()
}

// recvLoop reads envelopes until the connection breaks. Decrypt and
// decode failures on single frames are reported and skipped; only
// transport errors end the loop.
func (c *Client) recvLoop(conn net.Conn, cipher *crypto.SymmetricCipher) error {
	for {
		var envelope protocol.Envelope
		if err := protocol.ReadMessage(conn, &envelope); err != nil {
			if err == io.EOF {
				fmt.Println("Connection closed by server.")
				return nil
			}
			return err
		}
		if envelope.Type != protocol.TypeEncrypted {
			fmt.Println("Received unexpected message from server.")
			continue
		}
		payload, err := decryptPayload(cipher, envelope.Nonce, envelope.Ciphertext)
		if err != nil {
			fmt.Printf("Failed to decrypt message: %v\n", err)
			continue
		}

		switch payload.Type {
		case protocol.TypeChat, protocol.TypeSystem:
			c.record(payload)
		case protocol.TypeFileInit:
			c.handleFileInit(payload)
		case protocol.TypeFileChunk:
			c.handleFileChunk(payload)
		case protocol.TypePing:
			_ = c.sendEncrypted(protocol.Payload{Type: protocol.TypePong})
		default:
			c.logger.Debug().Str("type", payload.Type).Msg("unknown payload")
		}
	}
}

func decryptPayload(cipher *crypto.SymmetricCipher, nonceB64, ciphertextB64 string) (*protocol.Payload, error) {
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return nil, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, err
	}
	plaintext, err := cipher.Decrypt(nonce, ciphertext)
	if err != nil {
		return nil, err
	}
	var payload protocol.Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// record appends a payload to the scrollback, hands it to the history
// worker, and prints it. A full history queue drops the entry rather
// than blocking the receive loop.
func (c *Client) record(p *protocol.Payload) {
	c.messages = append(c.messages, *p)
	if len(c.messages) > c.bufferSize {
		c.messages = c.messages[len(c.messages)-c.bufferSize:]
	}
	if c.historyCh != nil {
		select {
		case c.historyCh <- *p:
		default:
			c.logger.Warn().Msg("history queue full, entry dropped")
		}
	}
	fmt.Println(c.renderer.Render(p))
}

// sendEncrypted seals one payload into an envelope frame. Payloads are
// JSON-marshaled with omitempty, so only the fields a type uses go on
// the wire.
func (c *Client) sendEncrypted(payload protocol.Payload) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.conn == nil || c.cipher == nil {
		return errClientNotConnected
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	nonce, ciphertext, err := c.cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}
	return protocol.WriteMessage(c.conn, protocol.Envelope{
		Type:       protocol.TypeEncrypted,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	})
}

func (c *Client) reconnectNotice(err error, backoff time.Duration) {
	if c.cfg.QuietReconnect {
		fmt.Println("[status] reconnecting...")
		return
	}
	fmt.Printf("[status] connection lost (%v). Retrying in %s.\n", err, backoff)
}

func (c *Client) showWelcome() {
	fmt.Printf("Connected to CMD Chat as %s in room %s.\n", c.name, c.room)
	fmt.Println("Type messages to chat. Commands: /nick, /join, /send, /clear, /help, /quit")
}
