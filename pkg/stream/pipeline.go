package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"helios-hq/helios/pkg/translate"
)

// ErrClientGone reports that the downstream client disconnected while
// the stream was in flight. Handlers log it as status 499 and stop.
var ErrClientGone = errors.New("client disconnected")

// UsageExtractor pulls token totals out of a raw upstream event. Used
// by passthrough streams, where no translator accumulates usage.
type UsageExtractor func(event string, data []byte) *translate.OpenAIUsage

// Pipeline forwards one upstream SSE stream to one downstream client.
type Pipeline struct {
	// Translator converts upstream events to the client's format. Nil
	// means passthrough: events are forwarded verbatim.
	Translator translate.StreamTranslator

	// Extract harvests usage from raw events on passthrough streams.
	// Ignored when Translator is set.
	Extract UsageExtractor

	// OnUsage runs exactly once when the stream ends, with the totals
	// seen, or nil when the upstream never reported any.
	OnUsage func(*translate.OpenAIUsage)

	Log *slog.Logger
}

// Run copies the upstream stream to the client until the upstream ends
// or the client goes away. Headers are written before the first frame.
func (p *Pipeline) Run(ctx context.Context, upstream io.Reader, w http.ResponseWriter) error {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	var usage *translate.OpenAIUsage
	defer func() {
		if p.OnUsage != nil {
			p.OnUsage(usage)
		}
	}()

	reader := NewReader(upstream)
	for {
		if err := ctx.Err(); err != nil {
			return ErrClientGone
		}

		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Upstream broke mid-stream; flush whatever the translator
			// still holds so the client gets a terminator.
			p.finish(w, flusher)
			if p.Translator != nil {
				usage = p.Translator.Usage()
			}
			return fmt.Errorf("read upstream stream: %w", err)
		}

		if p.Translator == nil {
			if p.Extract != nil {
				if u := p.Extract(event.Name, event.Data); u != nil {
					usage = u
				}
			}
			if err := writeFrame(w, flusher, translate.Frame{Event: event.Name, Data: event.Data}); err != nil {
				return ErrClientGone
			}
			continue
		}

		frames, err := p.Translator.Next(event.Name, event.Data)
		if err != nil {
			log.Warn("stream event dropped", "event", event.Name, "error", err)
			continue
		}
		for _, frame := range frames {
			if err := writeFrame(w, flusher, frame); err != nil {
				usage = p.Translator.Usage()
				return ErrClientGone
			}
		}
	}

	p.finish(w, flusher)
	if p.Translator != nil {
		usage = p.Translator.Usage()
	}
	return nil
}

// finish drains the translator's terminal frames. Write failures are
// ignored: the stream is over either way.
func (p *Pipeline) finish(w io.Writer, flusher http.Flusher) {
	if p.Translator == nil {
		return
	}
	for _, frame := range p.Translator.Finish() {
		if err := writeFrame(w, flusher, frame); err != nil {
			return
		}
	}
}

// writeFrame emits one SSE frame and flushes it out.
func writeFrame(w io.Writer, flusher http.Flusher, frame translate.Frame) error {
	if frame.Event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", frame.Event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", frame.Data); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}
