package ws

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"voxelterrain.ai/internal/protocol"
	"voxelterrain.ai/internal/sim/catalogs"
	"voxelterrain.ai/internal/sim/encoding"
	"voxelterrain.ai/internal/sim/world/terrain/store"
)

type Config struct {
	// Chunk requests per connection per second; 0 disables the limit.
	ChunkRequestsPerSecond int
	// Outbound messages buffered per connection.
	MaxQueue int
}

// Server serves chunks from a ChunkStore to websocket clients.
type Server struct {
	store *store.ChunkStore
	cats  *catalogs.BlockCatalog
	cfg   Config
	log   *log.Logger

	upgrader websocket.Upgrader

	sessions atomic.Int64
	served   atomic.Int64

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	active sync.WaitGroup
}

func NewServer(st *store.ChunkStore, cats *catalogs.BlockCatalog, cfg Config, logger *log.Logger) *Server {
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 16
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Server{
		done:  make(chan struct{}),
		store: st,
		cats:  cats,
		cfg:   cfg,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Sessions is the number of connected clients.
func (s *Server) Sessions() int64 { return s.sessions.Load() }

// ChunksServed counts CHUNK messages queued for delivery.
func (s *Server) ChunksServed() int64 { return s.served.Load() }

// Close disconnects every client and waits for their handlers to return.
// Connections accepted afterwards are closed right away.
func (s *Server) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.mu.Unlock()
	s.active.Wait()
}

func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.active.Add(1)
	return true
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if !s.track() {
			return
		}
		defer s.active.Done()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Closing the conn unblocks the reader loop on shutdown.
		go func() {
			select {
			case <-s.done:
				cancel()
				_ = conn.Close()
			case <-ctx.Done():
			}
		}()

		sessionID, ok := s.handshake(conn)
		if !ok {
			return
		}
		s.sessions.Add(1)
		defer s.sessions.Add(-1)

		out := make(chan []byte, s.cfg.MaxQueue)
		writerDone := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		var limiter *rate.Limiter
		if n := s.cfg.ChunkRequestsPerSecond; n > 0 {
			limiter = rate.NewLimiter(rate.Limit(n), n)
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			resp := s.handleMessage(msg, limiter)
			b, err := json.Marshal(resp)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}

		cancel()
		<-writerDone
		s.log.Printf("session %s closed", sessionID)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (string, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return "", false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closePolicy(conn, "bad HELLO")
		return "", false
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return "", false
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	welcome := s.Welcome(uuid.NewString())
	if err := writeJSON(conn, welcome); err != nil {
		return "", false
	}
	s.log.Printf("session %s opened client=%q", welcome.SessionID, hello.ClientName)
	return welcome.SessionID, true
}

// Welcome builds the WELCOME message for a new session.
func (s *Server) Welcome(sessionID string) protocol.WelcomeMsg {
	g := s.store.Gen
	msg := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		WorldParams: protocol.WorldParams{
			Seed:      g.Seed,
			Noise:     g.Noise,
			ChunkSize: [3]int{store.ChunkSize, store.ChunkHeight, store.ChunkSize},
			BoundaryR: g.BoundaryR,
		},
		Catalog: protocol.BlockCatalog{
			PaletteDigest: s.cats.PaletteDigest,
			DefsDigest:    s.cats.DefsDigest,
		},
	}
	for _, d := range s.cats.SortedDefs() {
		b := s.cats.Index[d.ID]
		msg.Catalog.Blocks = append(msg.Catalog.Blocks, protocol.BlockRef{
			ID:          uint8(b),
			Name:        d.ID,
			Solid:       d.Solid,
			Transparent: d.Transparent,
			Color:       d.Color,
		})
	}
	return msg
}

// handleMessage answers one post-handshake message. Every request gets
// exactly one reply, either CHUNK or ERROR.
func (s *Server) handleMessage(msg []byte, limiter *rate.Limiter) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "malformed json")
	}
	if base.ProtocolVersion != protocol.Version {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	if base.Type != protocol.TypeChunkReq {
		return protocol.NewError("", protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected message type %q", base.Type))
	}

	var req protocol.ChunkReqMsg
	if err := json.Unmarshal(msg, &req); err != nil {
		return protocol.NewError("", protocol.ErrBadRequest, "bad CHUNK_REQ")
	}
	if req.ReqID == "" {
		return protocol.NewError("", protocol.ErrBadRequest, "missing req_id")
	}
	if limiter != nil && !limiter.Allow() {
		return protocol.NewError(req.ReqID, protocol.ErrRateLimit, "too many chunk requests")
	}
	return s.ChunkResponse(req)
}

// ChunkResponse generates or loads the requested chunk and encodes it.
func (s *Server) ChunkResponse(req protocol.ChunkReqMsg) any {
	view, ok := s.store.View(req.CX, req.CZ)
	if !ok {
		return protocol.NewError(req.ReqID, protocol.ErrOutOfBounds,
			fmt.Sprintf("chunk (%d,%d) outside world boundary %d", req.CX, req.CZ, s.store.Gen.BoundaryR))
	}
	s.served.Add(1)
	return protocol.ChunkMsg{
		Type:            protocol.TypeChunk,
		ProtocolVersion: protocol.Version,
		ReqID:           req.ReqID,
		CX:              view.CX,
		CZ:              view.CZ,
		Size:            [3]int{store.ChunkSize, store.ChunkHeight, store.ChunkSize},
		Digest:          hex.EncodeToString(view.Digest[:]),
		Encoding:        "RLE",
		Data:            encoding.EncodeRLE(view.Blocks),
	}
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
