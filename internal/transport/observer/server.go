package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"primsim.ai/internal/observerproto"
	"primsim.ai/internal/protocol"
	"primsim.ai/internal/sim/world"
)

// ErrQueueFull is returned by a session whose outgoing queue is full. The
// session is closed; the observer has to reconnect and resync.
var ErrQueueFull = errors.New("observer: send queue full")

var errSessionClosed = errors.New("observer: session closed")

type Options struct {
	MaxQueue     int
	WriteTimeout time.Duration

	// SendWait is how long a send may wait for room in a full queue before
	// the session is closed. Initial sync bursts rely on it.
	SendWait     time.Duration
	LoopbackOnly bool
}

type Server struct {
	region *world.Region
	log    *log.Logger
	opts   Options

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	active   atomic.Int64
}

func NewServer(r *world.Region, logger *log.Logger, opts Options) *Server {
	if opts.MaxQueue <= 0 {
		opts.MaxQueue = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.SendWait <= 0 {
		opts.SendWait = opts.WriteTimeout
	}
	return &Server{
		region: r,
		log:    logger,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) allowed(r *http.Request) bool {
	return !s.opts.LoopbackOnly || isLoopbackRemote(r.RemoteAddr)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.region.Config()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			RegionID:        cfg.ID.String(),
			RegionName:      cfg.Name,
			Tick:            s.region.CurrentTick(),
			RegionParams: observerproto.RegionParams{
				TickRateHz:   cfg.TickRateHz,
				MaxLinks:     cfg.MaxLinks,
				FrameVersion: int(protocol.Version),
			},
			Observers: int(s.active.Load()),
		}
		for _, g := range s.region.Groups() {
			resp.Groups++
			resp.Parts += g.Size()
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// SchemaHandler serves observerproto.Schemas by name.
func (s *Server) SchemaHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		name := strings.TrimSuffix(r.PathValue("name"), ".json")
		src, ok := observerproto.Schemas[name]
		if !ok {
			http.NotFound(rw, r)
			return
		}
		rw.Header().Set("Content-Type", "application/schema+json")
		_, _ = rw.Write([]byte(src))
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
			s.reject(conn, protocol.ErrProtoBadRequest, "expected SUBSCRIBE")
			return
		}

		sess := &session{
			id:   uuid.New(),
			sid:  fmt.Sprintf("O%d", s.nextID.Add(1)),
			out:  make(chan []byte, s.opts.MaxQueue),
			wait: s.opts.SendWait,
			done: make(chan struct{}),
		}
		welcome, _ := json.Marshal(observerproto.WelcomeMsg{
			Type:            "WELCOME",
			ProtocolVersion: observerproto.Version,
			SessionID:       sess.sid,
			RegionID:        s.region.ID().String(),
			Tick:            s.region.CurrentTick(),
			FrameVersion:    int(protocol.Version),
		})
		_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case <-sess.done:
					writeErr <- ErrQueueFull
					_ = conn.Close()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
					if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		s.active.Add(1)
		s.region.AddObserver(sess)
		s.log.Printf("observer %s (%s) joined from %s", sess.sid, sub.Name, r.RemoteAddr)
		defer func() {
			s.region.RemoveObserver(sess.id)
			sess.close()
			s.active.Add(-1)
			s.log.Printf("observer %s left", sess.sid)
		}()

		// Reader loop: the client only sends control frames and keepalives.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) reject(conn *websocket.Conn, code, message string) {
	b, _ := json.Marshal(observerproto.ErrorMsg{
		Type:            "ERROR",
		ProtocolVersion: observerproto.Version,
		Code:            code,
		Message:         message,
	})
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, b)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(time.Second))
}

// session is one connected observer. It implements world.Agent.
type session struct {
	id  uuid.UUID
	sid string
	out chan []byte

	// wait bounds how long SendReliable blocks on a full queue.
	wait time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func (s *session) ID() uuid.UUID { return s.id }

// SendReliable queues msg in order. On a full queue it waits up to s.wait for
// the writer to make room; a session that still cannot keep up is closed
// rather than silently dropping frames.
func (s *session) SendReliable(msg []byte) error {
	select {
	case <-s.done:
		return errSessionClosed
	default:
	}
	select {
	case s.out <- msg:
		return nil
	default:
	}
	if s.wait <= 0 {
		s.close()
		return ErrQueueFull
	}
	t := time.NewTimer(s.wait)
	defer t.Stop()
	select {
	case s.out <- msg:
		return nil
	case <-s.done:
		return errSessionClosed
	case <-t.C:
		s.close()
		return ErrQueueFull
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
