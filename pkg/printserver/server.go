// Package printserver fingerprints audio streamed over a websocket.
//
// A session starts with a JSON text message naming the stream format:
//
//	{"sample_rate": 11025, "channels": 1, "mode": "chroma"}
//
// Binary messages then carry 16-bit little-endian interleaved PCM. A
// {"type": "flush"} message ends the current stream; the server replies
// with {"type": "result", "fingerprint", "hash", "frames", "width"} and the
// session continues with the same format. Sending another start message
// switches format. Sample rates outside [MinSampleRate, MaxSampleRate] and
// channel counts above MaxChannels are refused.
//
// Each connection owns its pipeline. All connections share one FFT pool.
package printserver

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/audioprint/pkg/audio/chroma"
	"github.com/haivivi/audioprint/pkg/fft"
	"github.com/haivivi/audioprint/pkg/fingerprint"
)

// MaxMessageSize bounds a single websocket message.
const MaxMessageSize = 1 << 20

// Stream formats a client may request.
const (
	MinSampleRate = 8000
	MaxSampleRate = 192000
	MaxChannels   = 8
)

// Option configures a Server.
type Option func(*Server)

// WithPool sets the FFT pool shared by all sessions.
func WithPool(p *fft.Pool) Option {
	return func(s *Server) {
		if p != nil {
			s.pool = p
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHashing sets the hash size and seed used in results.
func WithHashing(bits int, seed uint64) Option {
	return func(s *Server) {
		s.hashBits = bits
		s.seed = seed
	}
}

// WithInterpolation enables pitch-class interpolation for chroma sessions.
func WithInterpolation(on bool) Option {
	return func(s *Server) { s.interpolate = on }
}

// Server is an http.Handler serving fingerprint sessions.
type Server struct {
	pool        *fft.Pool
	logger      *slog.Logger
	hashBits    int
	seed        uint64
	interpolate bool
	upgrader    websocket.Upgrader

	mu      sync.Mutex
	hashers map[int]*fingerprint.Hasher
}

// New returns a Server.
func New(opts ...Option) *Server {
	s := &Server{
		pool:     fft.Default(),
		logger:   slog.Default(),
		hashBits: fingerprint.DefaultHashBits,
		seed:     fingerprint.DefaultSeed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 << 10,
			WriteBufferSize: 4 << 10,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		hashers: make(map[int]*fingerprint.Hasher),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) hasher(width int) *fingerprint.Hasher {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashers[width]
	if !ok {
		h = fingerprint.NewHasher(width, s.hashBits, s.seed)
		s.hashers[width] = h
	}
	return h
}

// ServeHTTP upgrades the request and runs a session until the peer closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("printserver: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(MaxMessageSize)

	log := s.logger.With("remote", r.RemoteAddr)
	log.Info("printserver: session opened")
	sess := &session{srv: s, ws: ws, log: log}
	if err := sess.run(); err != nil {
		log.Warn("printserver: session ended", "error", err)
		return
	}
	log.Info("printserver: session closed", "streams", sess.streams)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("printserver: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	hs := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()
	s.logger.Info("printserver: listening", "addr", ln.Addr().String(), "engine", s.pool.Engine().Name())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("printserver: serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}

type session struct {
	srv      *Server
	ws       *websocket.Conn
	log      *slog.Logger
	pipeline *chroma.Pipeline
	pending  []byte
	samples  []int16
	streams  int
}

func (c *session) run() error {
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		switch typ {
		case websocket.TextMessage:
			err = c.control(data)
		case websocket.BinaryMessage:
			err = c.audio(data)
		}
		if err != nil {
			return c.fail(err)
		}
	}
}

func (c *session) control(data []byte) error {
	var msg Control
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("bad control message: %w", err)
	}
	switch msg.Type {
	case "", TypeStart:
		return c.start(msg)
	case TypeFlush:
		return c.flush()
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (c *session) start(msg Control) error {
	if msg.SampleRate < MinSampleRate || msg.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: sample rate %d outside [%d, %d]",
			chroma.ErrInvalidFormat, msg.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if msg.Channels < 1 || msg.Channels > MaxChannels {
		return fmt.Errorf("%w: %d channels outside [1, %d]",
			chroma.ErrInvalidFormat, msg.Channels, MaxChannels)
	}
	mode, err := chroma.ParseMode(msg.Mode)
	if err != nil {
		return err
	}
	bands := msg.Bands
	if bands == 0 {
		bands = chroma.DefaultBands
	}
	if mode == chroma.ModeSpectrogram && (bands < 1 || bands > fingerprint.MaxWidth) {
		return fmt.Errorf("bands %d out of range [1, %d]", bands, fingerprint.MaxWidth)
	}
	p, err := chroma.New(mode, bands,
		chroma.WithPool(c.srv.pool),
		chroma.WithInterpolation(c.srv.interpolate),
		chroma.WithLogger(c.log),
	)
	if err != nil {
		return err
	}
	if err := p.Reset(msg.SampleRate, msg.Channels); err != nil {
		return err
	}
	c.pipeline = p
	c.pending = c.pending[:0]
	c.log.Debug("printserver: stream started", "mode", mode, "rate", msg.SampleRate, "channels", msg.Channels)
	return nil
}

// audio converts PCM bytes to samples. An odd trailing byte waits for the
// next message.
func (c *session) audio(data []byte) error {
	if c.pipeline == nil {
		return errors.New("audio before start message")
	}
	if len(c.pending) > 0 {
		data = append(c.pending, data...)
	}
	n := len(data) / 2
	c.samples = c.samples[:0]
	for i := range n {
		c.samples = append(c.samples, int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	c.pending = append(c.pending[:0], data[2*n:]...)
	return c.pipeline.Consume(c.samples)
}

func (c *session) flush() error {
	if c.pipeline == nil {
		return errors.New("flush before start message")
	}
	img := c.pipeline.Flush()
	c.pending = c.pending[:0]
	sum, err := fingerprint.Summarize(img, c.srv.hasher(img.Width()))
	if err != nil {
		return err
	}
	c.streams++
	c.log.Debug("printserver: stream flushed", "frames", sum.Frames, "hash", sum.Hash)
	return c.ws.WriteJSON(Reply{
		Type:        TypeResult,
		Fingerprint: sum.Fingerprint,
		Hash:        sum.Hash,
		Frames:      sum.Frames,
		Width:       sum.Width,
	})
}

// fail reports err to the peer and closes the session.
func (c *session) fail(err error) error {
	if werr := c.ws.WriteJSON(Reply{Type: TypeError, Error: err.Error()}); werr != nil {
		return errors.Join(err, werr)
	}
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "protocol error"),
		time.Now().Add(time.Second))
	return err
}
