package server

// Stats is a point-in-time view of the server.
type Stats struct {
	State               string   `json:"state"`
	ConnectionsLive     int64    `json:"connections_live"`
	ConnectionsAccepted int64    `json:"connections_accepted"`
	ConnectionsFailed   int64    `json:"connections_failed"`
	Entries             int      `json:"entries"`
	Mean                *float64 `json:"mean,omitempty"`
}

// Stats returns current counters. It never waits on the reactor.
func (s *Server) Stats() Stats {
	st := Stats{
		State:               s.State().String(),
		ConnectionsLive:     s.live.Load(),
		ConnectionsAccepted: s.accepted.Load(),
		ConnectionsFailed:   s.failed.Load(),
		Entries:             s.agg.Len(),
	}
	if mean, err := s.agg.Mean(); err == nil {
		st.Mean = &mean
	}
	return st
}
