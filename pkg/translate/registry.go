package translate

import (
	"fmt"

	"helios-hq/helios/pkg/wire"
)

// edge is a directed (source, target) format pair.
type edge struct {
	from wire.Format
	to   wire.Format
}

// Request carries everything a request translator may consult.
type Request struct {
	// Model is the upstream model identifier.
	Model string

	// Body is the client request body in the source format.
	Body []byte

	// Stream indicates whether a streaming response was requested.
	Stream bool

	// Credentials is the connection state slice dialect targets embed.
	Credentials Credentials

	// Provider is the upstream provider id.
	Provider string
}

// RequestTranslator converts a request body between two formats. The
// returned ToolNameMap is non-nil only when tool names were rewritten.
type RequestTranslator func(req *Request) ([]byte, ToolNameMap, error)

// ResponseTranslator converts a complete non-streaming response body.
type ResponseTranslator func(body []byte, names ToolNameMap) ([]byte, error)

// Frame is one Server-Sent Event emitted downstream. Event is empty for
// data-only protocols (OpenAI, Gemini).
type Frame struct {
	Event string
	Data  []byte
}

// StreamTranslator converts streaming events chunk-by-chunk. Next is
// called once per upstream SSE payload and may emit zero or more
// downstream frames; Finish emits the target format's terminator and
// any withheld final frames. Usage returns token totals accumulated
// from the upstream events, available after the stream ends.
type StreamTranslator interface {
	Next(event string, payload []byte) ([]Frame, error)
	Finish() []Frame
	Usage() *OpenAIUsage
}

// StreamFactory builds a fresh per-request StreamTranslator.
type StreamFactory func(model string, names ToolNameMap) StreamTranslator

// Registry is the table of directed translations between wire formats.
type Registry struct {
	requests  map[edge]RequestTranslator
	responses map[edge]ResponseTranslator
	streams   map[edge]StreamFactory
}

// NewRegistry returns a registry with all built-in edges registered.
// Direct edges radiate from the OpenAI hub; other pairs compose through
// it.
func NewRegistry() *Registry {
	r := &Registry{
		requests:  make(map[edge]RequestTranslator),
		responses: make(map[edge]ResponseTranslator),
		streams:   make(map[edge]StreamFactory),
	}

	// Request edges: hub spokes.
	r.requests[edge{wire.FormatClaude, wire.FormatOpenAI}] = claudeToOpenAIRequest
	r.requests[edge{wire.FormatOpenAI, wire.FormatClaude}] = openAIToClaudeRequest
	r.requests[edge{wire.FormatGemini, wire.FormatOpenAI}] = geminiToOpenAIRequest
	r.requests[edge{wire.FormatOpenAI, wire.FormatGemini}] = openAIToGeminiRequest
	r.requests[edge{wire.FormatOpenAIResponses, wire.FormatOpenAI}] = responsesToOpenAIRequest
	r.requests[edge{wire.FormatOpenAI, wire.FormatOpenAIResponses}] = openAIToResponsesRequest

	// Request edges: provider dialects (reached from the hub only).
	r.requests[edge{wire.FormatOpenAI, wire.FormatKiro}] = openAIToKiroRequest
	r.requests[edge{wire.FormatOpenAI, wire.FormatCopilot}] = openAIToCopilotRequest
	r.requests[edge{wire.FormatOpenAI, wire.FormatAntigravity}] = openAIToAntigravityRequest
	r.requests[edge{wire.FormatOpenAI, wire.FormatQwen}] = openAIToQwenRequest
	r.requests[edge{wire.FormatOpenAI, wire.FormatIFlow}] = openAIToIFlowRequest

	// Non-streaming response edges.
	r.responses[edge{wire.FormatClaude, wire.FormatOpenAI}] = claudeToOpenAIResponse
	r.responses[edge{wire.FormatOpenAI, wire.FormatClaude}] = openAIToClaudeResponse
	r.responses[edge{wire.FormatGemini, wire.FormatOpenAI}] = geminiToOpenAIResponse
	r.responses[edge{wire.FormatOpenAI, wire.FormatGemini}] = openAIToGeminiResponse
	r.responses[edge{wire.FormatOpenAIResponses, wire.FormatOpenAI}] = responsesToOpenAIResponse
	r.responses[edge{wire.FormatOpenAI, wire.FormatOpenAIResponses}] = openAIToResponsesResponse

	// Stream edges.
	r.streams[edge{wire.FormatClaude, wire.FormatOpenAI}] = newClaudeToOpenAIStream
	r.streams[edge{wire.FormatOpenAI, wire.FormatClaude}] = newOpenAIToClaudeStream
	r.streams[edge{wire.FormatGemini, wire.FormatOpenAI}] = newGeminiToOpenAIStream
	r.streams[edge{wire.FormatOpenAI, wire.FormatGemini}] = newOpenAIToGeminiStream
	r.streams[edge{wire.FormatOpenAIResponses, wire.FormatOpenAI}] = newResponsesToOpenAIStream
	r.streams[edge{wire.FormatOpenAI, wire.FormatOpenAIResponses}] = newOpenAIToResponsesStream

	return r
}

// normalizeStream maps dialects onto the base edge their streams are
// shaped as. The Kiro executor already converts EventStream frames to
// OpenAI chunks before they reach the pipeline.
func normalizeStream(f wire.Format) wire.Format {
	return wire.Normalize(f)
}

// TranslateRequest converts req.Body from src to tgt. src == tgt is the
// identity. When no direct edge exists the translation composes through
// the OpenAI hub and the tool-name maps of both hops are merged.
func (r *Registry) TranslateRequest(src, tgt wire.Format, req *Request) ([]byte, ToolNameMap, error) {
	if src == tgt {
		return req.Body, nil, nil
	}

	if tr, ok := r.requests[edge{src, tgt}]; ok {
		return tr(req)
	}

	toHub, ok := r.requests[edge{src, wire.FormatOpenAI}]
	if !ok {
		return nil, nil, fmt.Errorf("no request translator from %s to %s", src, tgt)
	}
	fromHub, ok := r.requests[edge{wire.FormatOpenAI, tgt}]
	if !ok {
		return nil, nil, fmt.Errorf("no request translator from %s to %s", src, tgt)
	}

	hubBody, names1, err := toHub(req)
	if err != nil {
		return nil, nil, fmt.Errorf("translate %s to openai: %w", src, err)
	}

	hubReq := *req
	hubReq.Body = hubBody
	out, names2, err := fromHub(&hubReq)
	if err != nil {
		return nil, nil, fmt.Errorf("translate openai to %s: %w", tgt, err)
	}

	return out, mergeNames(names1, names2), nil
}

// TranslateResponse converts a complete non-streaming response body
// from the upstream format back to the client format.
func (r *Registry) TranslateResponse(from, to wire.Format, body []byte, names ToolNameMap) ([]byte, error) {
	from = normalizeStream(from)
	to = normalizeStream(to)
	if from == to {
		return body, nil
	}

	if tr, ok := r.responses[edge{from, to}]; ok {
		return tr(body, names)
	}

	toHub, ok := r.responses[edge{from, wire.FormatOpenAI}]
	if !ok {
		return nil, fmt.Errorf("no response translator from %s to %s", from, to)
	}
	fromHub, ok := r.responses[edge{wire.FormatOpenAI, to}]
	if !ok {
		return nil, fmt.Errorf("no response translator from %s to %s", from, to)
	}

	hubBody, err := toHub(body, names)
	if err != nil {
		return nil, fmt.Errorf("translate %s response to openai: %w", from, err)
	}
	return fromHub(hubBody, nil)
}

// NewStreamTranslator builds a per-request streaming translator from
// the upstream format to the client format. Callers must not reuse the
// returned translator across requests.
func (r *Registry) NewStreamTranslator(from, to wire.Format, model string, names ToolNameMap) (StreamTranslator, error) {
	from = normalizeStream(from)
	to = normalizeStream(to)
	if from == to {
		return nil, fmt.Errorf("stream translation from %s to itself is a passthrough", from)
	}

	if factory, ok := r.streams[edge{from, to}]; ok {
		return factory(model, names), nil
	}

	toHub, ok := r.streams[edge{from, wire.FormatOpenAI}]
	if !ok {
		return nil, fmt.Errorf("no stream translator from %s to %s", from, to)
	}
	fromHub, ok := r.streams[edge{wire.FormatOpenAI, to}]
	if !ok {
		return nil, fmt.Errorf("no stream translator from %s to %s", from, to)
	}

	return &chainedStream{
		first:  toHub(model, names),
		second: fromHub(model, nil),
	}, nil
}

// chainedStream composes two stream translators through the hub: every
// intermediate OpenAI chunk produced by the first stage is fed into the
// second.
type chainedStream struct {
	first  StreamTranslator
	second StreamTranslator
}

func (c *chainedStream) Next(event string, payload []byte) ([]Frame, error) {
	hubFrames, err := c.first.Next(event, payload)
	if err != nil {
		return nil, err
	}
	var out []Frame
	for _, hf := range hubFrames {
		if isDoneFrame(hf) {
			continue
		}
		frames, err := c.second.Next(hf.Event, hf.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, frames...)
	}
	return out, nil
}

func (c *chainedStream) Finish() []Frame {
	var out []Frame
	for _, hf := range c.first.Finish() {
		if isDoneFrame(hf) {
			continue
		}
		frames, err := c.second.Next(hf.Event, hf.Data)
		if err != nil {
			continue
		}
		out = append(out, frames...)
	}
	return append(out, c.second.Finish()...)
}

// Usage reports the first stage's totals: only the stage adjacent to
// the upstream sees the provider's usage events.
func (c *chainedStream) Usage() *OpenAIUsage {
	return c.first.Usage()
}

func isDoneFrame(f Frame) bool {
	return f.Event == "" && string(f.Data) == "[DONE]"
}

func mergeNames(a, b ToolNameMap) ToolNameMap {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	merged := make(ToolNameMap, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	// Second-hop rewrites map back through the first hop.
	for k, v := range b {
		if original, ok := a[v]; ok {
			merged[k] = original
		} else {
			merged[k] = v
		}
	}
	return merged
}
