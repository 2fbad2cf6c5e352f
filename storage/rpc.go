package storage

import (
	"time"

	"github.com/hollowcore/nettable/message"
	"github.com/hollowcore/nettable/value"
)

// CreateRpc marks localID as an RPC entry backed by def, registering rpcUID
// as the local handler identity. If def is identical to the entry's
// current value, only rpcUID is recorded: no notification, no message.
func (s *Storage) CreateRpc(localID uint32, def *value.Value, rpcUID uint32) {
	s.mu.Lock()
	e := s.entryByID(localID)
	if e == nil {
		s.mu.Unlock()
		return
	}
	unchanged := e.value != nil && value.Equal(e.value, def)
	e.rpcUID = rpcUID
	if unchanged {
		s.mu.Unlock()
		return
	}
	out := s.setEntryValueImpl(e, def, 0, true)
	s.mu.Unlock()
	s.dispatch(out)
}

// CallRpc invokes the RPC at localID with params, returning a call uid to
// pass to GetRpcResult. Returns 0 if localID isn't a valid RPC entry. On
// the server, the call is executed inline via the injected RPCServer; on
// the client, it's enqueued as an ExecuteRpc for the server to run.
func (s *Storage) CallRpc(localID uint32, params string) uint16 {
	s.mu.Lock()
	e := s.entryByID(localID)
	if e == nil || e.value == nil || !e.value.IsRPC() {
		s.mu.Unlock()
		return 0
	}
	e.rpcCallUID++
	callUID := e.rpcCallUID
	rpcUID := e.rpcUID
	id := e.id
	name := e.name

	if s.server {
		s.mu.Unlock()
		if s.rpcServer != nil {
			s.rpcServer.ProcessRpc(localID, callUID, name, params, ConnectionInfo{}, func(result string) {
				s.mu.Lock()
				s.rpcResults[RpcIDPair{LocalID: localID, CallUID: callUID}] = result
				s.mu.Unlock()
				s.rpcResultsCond.Broadcast()
			}, rpcUID)
		}
		return callUID
	}

	s.mu.Unlock()
	s.dispatch([]outboundMsg{{msg: message.ExecuteRPCMsg(uint16(id), callUID, params)}})
	return callUID
}

// GetRpcResult blocks for a previously issued call's result. timeout < 0
// waits indefinitely; timeout == 0 checks once without blocking. Returns
// (result, true, false) on success; (_, false, false) if the pair was
// already awaited, cancelled, or the engine is terminating; (_, false,
// true) if timeout elapsed first.
func (s *Storage) GetRpcResult(localID uint32, callUID uint16, timeout time.Duration) (result string, ok bool, timedOut bool) {
	key := RpcIDPair{LocalID: localID, CallUID: callUID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.rpcBlockingCalls[key]; dup {
		return "", false, false
	}
	s.rpcBlockingCalls[key] = struct{}{}

	if v, found := s.rpcResults[key]; found {
		delete(s.rpcResults, key)
		delete(s.rpcBlockingCalls, key)
		return v, true, false
	}
	if timeout == 0 {
		delete(s.rpcBlockingCalls, key)
		return "", false, false
	}

	var expired bool
	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() {
			s.mu.Lock()
			expired = true
			s.mu.Unlock()
			s.rpcResultsCond.Broadcast()
		})
		defer timer.Stop()
	}

	for {
		s.rpcResultsCond.Wait()

		if v, found := s.rpcResults[key]; found {
			delete(s.rpcResults, key)
			delete(s.rpcBlockingCalls, key)
			return v, true, false
		}
		if _, stillWaiting := s.rpcBlockingCalls[key]; !stillWaiting {
			return "", false, false
		}
		if s.terminating {
			delete(s.rpcBlockingCalls, key)
			return "", false, false
		}
		if expired {
			delete(s.rpcBlockingCalls, key)
			return "", false, true
		}
	}
}

// CancelRpcResult unblocks any GetRpcResult waiting on (localID, callUID),
// which then returns (_, false, false).
func (s *Storage) CancelRpcResult(localID uint32, callUID uint16) {
	s.mu.Lock()
	delete(s.rpcBlockingCalls, RpcIDPair{LocalID: localID, CallUID: callUID})
	s.mu.Unlock()
	s.rpcResultsCond.Broadcast()
}
