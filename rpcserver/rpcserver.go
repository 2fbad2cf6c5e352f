// Package rpcserver is an in-process storage.RPCServer: a registry of Go
// functions keyed by rpc uid, each invoked on its own goroutine so a slow
// handler never blocks Storage's dispatch path.
package rpcserver

import (
	"sync"

	"github.com/hollowcore/nettable/storage"
)

// Handler computes an RPC's result payload from its request payload and
// the calling connection's info. Both payloads are opaque byte strings as
// far as Storage is concerned; encoding is up to the caller.
type Handler func(params string, conn storage.ConnectionInfo) string

// Server is a handler registry implementing storage.RPCServer.
type Server struct {
	mu       sync.Mutex
	handlers map[uint32]Handler
	nextUID  uint32
}

// New returns an empty Server.
func New() *Server {
	return &Server{handlers: map[uint32]Handler{}}
}

// Register adds h to the registry and returns the rpc uid to pass to
// Storage.CreateRpc.
func (s *Server) Register(h Handler) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := s.nextUID
	s.nextUID++
	s.handlers[uid] = h
	return uid
}

// ProcessRpc implements storage.RPCServer.
func (s *Server) ProcessRpc(localID uint32, callUID uint16, name, params string, conn storage.ConnectionInfo, sendResponse func(string), rpcUID uint32) {
	s.mu.Lock()
	h, ok := s.handlers[rpcUID]
	s.mu.Unlock()
	if !ok {
		sendResponse("")
		return
	}
	go func() { sendResponse(h(params, conn)) }()
}

// RemoveRpc implements storage.RPCServer.
func (s *Server) RemoveRpc(rpcUID uint32) {
	s.mu.Lock()
	delete(s.handlers, rpcUID)
	s.mu.Unlock()
}
