// Package actor provides a minimal mailbox-driven actor runtime.
//
// Every message sent to an ActorRef is handled by the actor's Receive on a
// single goroutine, in order. State owned by the actor therefore needs no
// locking as long as it is only touched from Receive.
package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/codefionn/sqmean/internal/logger"
)

var (
	// ErrStopped is returned by Send once the actor's run loop has exited
	ErrStopped = errors.New("actor is stopped")
	// ErrMailboxFull is returned by TrySend when the mailbox has no room
	ErrMailboxFull = errors.New("actor mailbox is full")
)

// Message represents a message sent to an actor
type Message interface {
	Type() string
}

// Actor represents an actor in the actor model
type Actor interface {
	// Receive processes incoming messages
	Receive(ctx context.Context, msg Message) error
	// Start is called once before the first message is delivered
	Start(ctx context.Context) error
	// Stop is called once after the run loop has exited
	Stop(ctx context.Context) error
	// ID returns the actor's unique identifier
	ID() string
}

// ActorRef is a reference to an actor for sending messages
type ActorRef struct {
	id      string
	mailbox chan Message
	actor   Actor
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	mu      sync.Mutex
	stopped bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewActorRef creates a new actor reference with the given ID, actor
// implementation and mailbox size.
func NewActorRef(id string, actor Actor, mailboxSize int) *ActorRef {
	return &ActorRef{
		id:      id,
		actor:   actor,
		mailbox: make(chan Message, mailboxSize),
		done:    make(chan struct{}),
	}
}

// ID returns the actor's ID
func (ref *ActorRef) ID() string {
	return ref.id
}

// Done is closed when the actor stops accepting messages.
func (ref *ActorRef) Done() <-chan struct{} {
	return ref.done
}

// Send enqueues msg, waiting for room in the mailbox. It fails with
// ErrStopped if the actor stops before the message is queued.
func (ref *ActorRef) Send(msg Message) error {
	select {
	case <-ref.done:
		return fmt.Errorf("%w: %s", ErrStopped, ref.id)
	default:
	}

	select {
	case ref.mailbox <- msg:
		return nil
	case <-ref.done:
		return fmt.Errorf("%w: %s", ErrStopped, ref.id)
	}
}

// TrySend enqueues msg without waiting.
func (ref *ActorRef) TrySend(msg Message) error {
	select {
	case <-ref.done:
		return fmt.Errorf("%w: %s", ErrStopped, ref.id)
	default:
	}

	select {
	case ref.mailbox <- msg:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrMailboxFull, ref.id)
	}
}

// Start starts the actor's message processing loop
func (ref *ActorRef) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	ref.cancel = cancel

	if err := ref.actor.Start(ctx); err != nil {
		cancel()
		ref.closeDone()
		return err
	}

	ref.wg.Add(1)
	go ref.run(ctx)
	return nil
}

// Stop stops the actor gracefully. Messages still queued are dropped.
func (ref *ActorRef) Stop(ctx context.Context) error {
	ref.mu.Lock()
	if ref.stopped {
		ref.mu.Unlock()
		return nil
	}
	ref.stopped = true
	ref.mu.Unlock()

	if ref.cancel != nil {
		ref.cancel()
	}
	ref.closeDone()

	// Wait for actor to finish processing
	done := make(chan struct{})
	go func() {
		ref.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return ref.actor.Stop(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ref *ActorRef) closeDone() {
	ref.doneOnce.Do(func() { close(ref.done) })
}

// run is the actor's main message processing loop
func (ref *ActorRef) run(ctx context.Context) {
	defer ref.wg.Done()
	defer ref.closeDone()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ref.mailbox:
			if err := ref.actor.Receive(ctx, msg); err != nil {
				// Log error but continue processing
				logger.Error("Actor %s error processing message: %v", ref.id, err)
			}
		}
	}
}
