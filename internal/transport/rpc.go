// Package transport wires the detector's messages onto the network using
// net/rpc, generalizing the teacher's gossiper accept/serve loop
// (gossip/pkg/gossiper.go) and its RPC plugin server/client
// (remote-procedure-call/plugin/rpc.go) from membership gossip onto the
// Van Renesse protocol and the Tracker's control plane.
package transport

import (
	"fmt"
	"net"
	"net/rpc"
	"sync"

	"go.uber.org/zap"
)

// Ack is returned by every RPC method in this system. Gossip dispatch is
// fire-and-forget by design (spec.md §5): the reply carries no data, it
// only confirms delivery to the transport layer.
type Ack struct{}

// NodeServiceName is the net/rpc registered name for a node's RPC-visible
// surface.
const NodeServiceName = "NodeRPC"

// TrackerServiceName is the net/rpc registered name for the Tracker's
// RPC-visible surface.
const TrackerServiceName = "TrackerRPC"

// Server hosts one RPC-visible receiver bound to a fixed address. Unlike
// the teacher's ephemeral plugin server (which listens on ":"), nodes and
// the Tracker need a known, stable address that peers can dial.
type Server struct {
	logger  *zap.Logger
	addr    string
	engine  *rpc.Server
	closing chan chan error

	mu   sync.Mutex
	port int
}

// NewServer registers receiver under serviceName and prepares a server
// bound to addr. Call Serve to start accepting connections.
func NewServer(addr, serviceName string, logger *zap.Logger, receiver any) (*Server, error) {
	engine := rpc.NewServer()
	if err := engine.RegisterName(serviceName, receiver); err != nil {
		return nil, fmt.Errorf("transport: register %s: %w", serviceName, err)
	}
	return &Server{addr: addr, logger: logger, engine: engine}, nil
}

// Serve starts accepting connections in the background. The accept and
// serve steps are split across two select cases, the same pattern the
// teacher's Gossiper.serveLoop uses, so a pending Shutdown is never
// blocked behind an in-flight Accept.
func (s *Server) Serve() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.port = l.Addr().(*net.TCPAddr).Port
	s.mu.Unlock()

	s.closing = make(chan chan error)
	go s.serveLoop(l)
	return nil
}

// Port returns the bound TCP port, useful when addr requested an
// ephemeral port (":0").
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *Server) serveLoop(l net.Listener) {
	defer l.Close()

	accepting := make(chan struct{}, 1)
	serving := make(chan net.Conn, 1)
	accepting <- struct{}{}

	for {
		select {
		case errch := <-s.closing:
			errch <- nil
			return
		case <-accepting:
			go func() {
				conn, err := l.Accept()
				if err != nil {
					return
				}
				serving <- conn
			}()
		case conn := <-serving:
			go s.engine.ServeConn(conn)
			accepting <- struct{}{}
		}
	}
}

// Shutdown gracefully stops accepting new connections.
func (s *Server) Shutdown() error {
	if s.closing == nil {
		return nil
	}
	errch := make(chan error)
	s.closing <- errch
	return <-errch
}

// dialPool is the connection cache shared by NodeClient and TrackerClient.
// Connections are dialed lazily on first use and invalidated on error so
// the next call redials rather than retrying (spec.md §5: no retries).
type dialPool struct {
	mu      sync.Mutex
	clients map[string]*rpc.Client
}

func newDialPool() dialPool {
	return dialPool{clients: map[string]*rpc.Client{}}
}

func (p *dialPool) dial(addr string) (*rpc.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cl, ok := p.clients[addr]; ok {
		return cl, nil
	}
	cl, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	p.clients[addr] = cl
	return cl, nil
}

func (p *dialPool) invalidate(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.clients, addr)
}
