package scanner

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrRunning is returned by Start on a station that is already scanning.
var ErrRunning = errors.New("station already running")

// Source yields decoded scan strings. Scans is closed when the source ends.
type Source interface {
	Scans() <-chan string
	Close() error
}

// Opener acquires a scan source, e.g. a camera or a barcode wedge.
type Opener func(ctx context.Context) (Source, error)

// Handler receives each decoded string.
type Handler func(ctx context.Context, payload string)

// Station runs one scan source at a time and feeds its output to a handler.
// The source is released exactly once per Start, whichever of Stop,
// context cancellation or the source ending comes first.
type Station struct {
	open   Opener
	handle Handler

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStation creates an idle station.
func NewStation(open Opener, handle Handler) *Station {
	return &Station{open: open, handle: handle}
}

// Start acquires the source and begins scanning in the background.
func (s *Station) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		select {
		case <-s.done:
		default:
			return ErrRunning
		}
	}

	src, err := s.open(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go s.run(ctx, cancel, src, done)
	return nil
}

func (s *Station) run(ctx context.Context, cancel context.CancelFunc, src Source, done chan struct{}) {
	defer close(done)
	defer cancel()
	defer func() {
		if err := src.Close(); err != nil {
			log.Printf("scan source release failed: %v", err)
		}
	}()

	scans := src.Scans()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-scans:
			if !ok {
				return
			}
			s.handle(ctx, payload)
		}
	}
}

// Stop ends scanning and waits until the source has been released.
// Stopping an idle station is a no-op.
func (s *Station) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the current run has released its source.
func (s *Station) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// Running reports whether a source is currently held.
func (s *Station) Running() bool {
	select {
	case <-s.Done():
		return false
	default:
		return true
	}
}
