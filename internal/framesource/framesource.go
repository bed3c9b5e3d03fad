// Package framesource defines how source loops obtain frames and routes a
// source descriptor to the implementation that understands it.
package framesource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

// ErrEndOfStream is returned by Stream.Next once a finite source is exhausted.
var ErrEndOfStream = errors.New("end of stream")

// Stream is an open frame source.
type Stream interface {
	// Next blocks until the next frame is available.
	Next(ctx context.Context) (models.Frame, error)
	Close() error
	// Reconnectable reports whether a failed read may be recovered by
	// closing and reopening. Finite recordings and one-shot URLs are not.
	Reconnectable() bool
}

// Opener opens a stream for a source descriptor.
type Opener interface {
	Open(ctx context.Context, descriptor string) (Stream, error)
}

type OpenerFunc func(ctx context.Context, descriptor string) (Stream, error)

func (f OpenerFunc) Open(ctx context.Context, descriptor string) (Stream, error) {
	return f(ctx, descriptor)
}

// Router picks an Opener by the descriptor's URL scheme.
type Router struct {
	openers map[string]Opener
}

func NewRouter() *Router {
	return &Router{openers: make(map[string]Opener)}
}

// Handle registers o for scheme, replacing any previous registration.
func (r *Router) Handle(scheme string, o Opener) {
	r.openers[strings.ToLower(scheme)] = o
}

func (r *Router) Open(ctx context.Context, descriptor string) (Stream, error) {
	u, err := url.Parse(descriptor)
	if err != nil {
		return nil, fmt.Errorf("parse source %q: %w", descriptor, err)
	}

	o, ok := r.openers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("no frame source for scheme %q", u.Scheme)
	}
	return o.Open(ctx, descriptor)
}
