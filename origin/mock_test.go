package origin_test

import (
	"context"
	"net/http"
	"sync"
)

// HttpDoerMock is a hand-rolled moq-shaped mock.
type HttpDoerMock struct {
	DoFunc func(req *http.Request) (*http.Response, error)

	mu       sync.Mutex
	doCalls_ []struct{ Request *http.Request }
}

func (m *HttpDoerMock) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.doCalls_ = append(m.doCalls_, struct{ Request *http.Request }{Request: req})
	m.mu.Unlock()
	return m.DoFunc(req)
}

func (m *HttpDoerMock) DoCalls() []struct{ Request *http.Request } {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doCalls_
}

// LoggerMock is a no-op, call-recording stand-in for telemetry.Logger.
type LoggerMock struct {
	InfoFunc  func(ctx context.Context, msg string, kv ...any)
	DebugFunc func(ctx context.Context, msg string, kv ...any)
	TraceFunc func(ctx context.Context, msg string, kv ...any)
	ErrorFunc func(ctx context.Context, msg string, err error, kv ...any)
}

func (m *LoggerMock) Info(ctx context.Context, msg string, kv ...any) {
	if m.InfoFunc != nil {
		m.InfoFunc(ctx, msg, kv...)
	}
}

func (m *LoggerMock) Debug(ctx context.Context, msg string, kv ...any) {
	if m.DebugFunc != nil {
		m.DebugFunc(ctx, msg, kv...)
	}
}

func (m *LoggerMock) Trace(ctx context.Context, msg string, kv ...any) {
	if m.TraceFunc != nil {
		m.TraceFunc(ctx, msg, kv...)
	}
}

func (m *LoggerMock) Error(ctx context.Context, msg string, err error, kv ...any) {
	if m.ErrorFunc != nil {
		m.ErrorFunc(ctx, msg, err, kv...)
	}
}
