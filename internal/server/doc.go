// Package server implements the sqmean supervisor.
//
// A Server owns the listening socket, the shared aggregate, the registry of
// live connections and the background dumper. All registry and lifecycle
// state is owned by a single reactor goroutine (an actor mailbox); the
// acceptor, the connections, timers and signal handlers only ever post
// messages to it.
//
// Shutdown runs in phases: the listener is closed, every registered
// connection is asked to stop, the reactor polls until all of them have
// closed their sockets (force-closing stragglers after the drain timeout),
// and finally the dumper is cancelled with a bounded wait.
//
// When Config.StatusAddr is set, an HTTP endpoint serves /health, /stats and
// a websocket feed of Stats on /watch.
package server
