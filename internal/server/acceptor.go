package server

import "net"

// accept hands every inbound socket to the reactor and immediately accepts
// the next one. It returns after the first accept error, which the reactor
// classifies.
func (s *Server) accept(ln net.Listener) {
	defer s.wg.Done()

	for {
		nc, err := ln.Accept()
		if err != nil {
			_ = s.ref.Send(acceptStopped{err: err})
			return
		}
		if err := s.ref.Send(connAccepted{nc: nc}); err != nil {
			nc.Close()
			return
		}
	}
}
