package hostfuncs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/reglet-dev/sourcehost/infrastructure/httpclient"
	"github.com/reglet-dev/sourcehost/infrastructure/script"
	"github.com/reglet-dev/sourcehost/infrastructure/settings"
	"github.com/reglet-dev/sourcehost/resource"
	"github.com/reglet-dev/sourcehost/wireformat"
)

// PartialResultSink receives values a guest streams with
// env.send_partial_result before its call returns.
type PartialResultSink func(ctx context.Context, v any)

// Session is the host state one guest instance reaches through its imports.
type Session struct {
	Resources *resource.Table
	Logger    *zap.Logger
	HTTP      *httpclient.Client
	Settings  *settings.Store
	Partial   PartialResultSink
	Now       func() time.Time
	// Sleep blocks for env.sleep. It returns early when ctx is done.
	Sleep         func(ctx context.Context, d time.Duration)
	Plugin        string
	ScriptOptions []script.Option
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithResources sets the resource table.
func WithResources(t *resource.Table) SessionOption {
	return func(s *Session) {
		if t != nil {
			s.Resources = t
		}
	}
}

// WithLogger sets the logger used for guest output and adapter diagnostics.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.Logger = l
		}
	}
}

// WithHTTPClient sets the client behind the net namespace.
func WithHTTPClient(c *httpclient.Client) SessionOption {
	return func(s *Session) {
		if c != nil {
			s.HTTP = c
		}
	}
}

// WithSettings sets the store behind the defaults namespace.
func WithSettings(st *settings.Store) SessionOption {
	return func(s *Session) {
		if st != nil {
			s.Settings = st
		}
	}
}

// WithPartialResultSink sets the receiver of streamed partial results.
func WithPartialResultSink(fn PartialResultSink) SessionOption {
	return func(s *Session) { s.Partial = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.Now = now
		}
	}
}

// WithSleeper replaces the env.sleep implementation.
func WithSleeper(fn func(ctx context.Context, d time.Duration)) SessionOption {
	return func(s *Session) {
		if fn != nil {
			s.Sleep = fn
		}
	}
}

// WithPluginName labels guest log output.
func WithPluginName(name string) SessionOption {
	return func(s *Session) { s.Plugin = name }
}

// WithScriptOptions configures every script context the guest creates.
func WithScriptOptions(opts ...script.Option) SessionOption {
	return func(s *Session) { s.ScriptOptions = append(s.ScriptOptions, opts...) }
}

// NewSession creates a session. Without a settings store, settings live in
// memory for the lifetime of the session.
func NewSession(ctx context.Context, opts ...SessionOption) (*Session, error) {
	s := &Session{
		Resources: resource.NewTable(),
		Logger:    zap.NewNop(),
		Now:       time.Now,
		Sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.HTTP == nil {
		s.HTTP = httpclient.New(httpclient.WithLogger(s.Logger))
	}
	if s.Settings == nil {
		st, err := settings.Open(ctx, settings.WithLogger(s.Logger))
		if err != nil {
			return nil, err
		}
		s.Settings = st
	}
	return s, nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// store inserts v and returns its handle, or the namespace's table-full code.
func (s *Session) store(ns string, kind resource.Kind, v any) int32 {
	h, err := s.Resources.Insert(kind, v)
	if err != nil {
		return GenericCode(ns)
	}
	return h
}

// storeValue encodes v and stores the envelope as a Buffer the guest reads
// back with std.buffer_len and std.read_buffer.
func (s *Session) storeValue(ns string, v any, failure int32) int32 {
	buf, err := wireformat.Encode(v)
	if err != nil {
		return failure
	}
	return s.store(ns, resource.KindBuffer, buf)
}
