package executor

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"helios-hq/helios/pkg/credentials"
	"helios-hq/helios/pkg/wire"
)

// defaultTimeout is the wall-clock budget for one non-streaming
// attempt. Streaming attempts are bounded by the caller's context.
const defaultTimeout = 120 * time.Second

// Request is one upstream attempt.
type Request struct {
	// Model is the upstream model identifier.
	Model string

	// Body is the request body, already translated to the provider's
	// wire format.
	Body []byte

	// Stream requests a streaming response.
	Stream bool

	// Conn is the credential serving this attempt.
	Conn *credentials.Connection
}

// Result is the outcome of one upstream attempt. Response is returned
// even on non-2xx statuses; classification is the caller's job. For
// streaming calls the response body is left open.
type Result struct {
	Response *http.Response

	// URL, Headers, and Body record what was actually sent, for the
	// request debug log.
	URL     string
	Headers map[string]string
	Body    []byte
}

// Executor is the per-provider strategy.
type Executor interface {
	// Provider returns the provider id this executor serves.
	Provider() string

	// Target returns the wire format the provider expects.
	Target() wire.Format

	// BuildURL returns the endpoint for one attempt. urlIndex selects
	// an alternate base URL when the provider has any.
	BuildURL(model string, stream bool, urlIndex int, conn *credentials.Connection) string

	// BuildHeaders returns the request headers for the connection.
	BuildHeaders(conn *credentials.Connection, stream bool) map[string]string

	// TransformRequest applies provider-specific body rewrites after
	// translation.
	TransformRequest(model string, body []byte, stream bool, conn *credentials.Connection) ([]byte, error)

	// Execute issues the upstream call.
	Execute(ctx context.Context, req *Request) (*Result, error)

	// RefreshCredentials refreshes the connection's OAuth tokens. A nil
	// result with nil error means the provider declined the refresh.
	RefreshCredentials(ctx context.Context, conn *credentials.Connection) (*credentials.Tokens, error)
}

// Registry dispatches to executors by provider id.
type Registry struct {
	log    *slog.Logger
	client *http.Client
	execs  map[string]Executor
}

// NewRegistry builds the registry with every builtin provider
// registered.
func NewRegistry(log *slog.Logger) *Registry {
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}

	r := &Registry{log: log, client: client, execs: map[string]Executor{}}
	for id, info := range builtinProviders {
		switch id {
		case "kiro":
			r.execs[id] = newKiroExecutor(info, client, log)
		case "copilot":
			r.execs[id] = newCopilotExecutor(info, client, log)
		default:
			r.execs[id] = newDefaultExecutor(info, client, log)
		}
	}
	return r
}

// For returns the executor serving a connection. Unknown providers get
// a default executor parameterized by the connection's base URL and api
// type, supporting user-added compatible nodes.
func (r *Registry) For(conn *credentials.Connection) Executor {
	if exec, ok := r.execs[conn.Provider]; ok {
		return exec
	}
	family := familyOpenAI
	target := wire.FormatOpenAI
	if conn.APIType == familyAnthropic {
		family = familyAnthropic
		target = wire.FormatClaude
	} else if conn.APIType == familyResponses {
		family = familyResponses
		target = wire.FormatOpenAIResponses
	}
	return newDefaultExecutor(ProviderInfo{
		ID:      conn.Provider,
		BaseURL: conn.BaseURL,
		Family:  family,
		Target:  target,
	}, r.client, r.log)
}

// Refresher adapts the registry to credentials.RefresherFor.
func (r *Registry) Refresher(provider string) credentials.Refresher {
	exec, ok := r.execs[provider]
	if !ok {
		return nil
	}
	return exec
}
