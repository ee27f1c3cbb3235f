package executor

import (
	"encoding/binary"
	"fmt"
)

// AWS EventStream binary framing. A message is:
//
//	prelude:  total length u32-be | headers length u32-be | prelude CRC u32-be
//	headers:  repeated {nameLen u8, name, type u8, value}
//	payload:  total - 16 - headersLen bytes
//	tail:     message CRC u32-be
//
// Only string-typed headers (type 7) matter here; other types are
// skipped by size. CRCs are tolerated, not verified.

const (
	esPreludeLen = 12
	esCRCLen     = 4

	esTypeBoolTrue  = 0
	esTypeBoolFalse = 1
	esTypeByte      = 2
	esTypeShort     = 3
	esTypeInteger   = 4
	esTypeLong      = 5
	esTypeByteArray = 6
	esTypeString    = 7
	esTypeTimestamp = 8
	esTypeUUID      = 9
)

// esFrame is one decoded EventStream message.
type esFrame struct {
	// EventType is the value of the ":event-type" header, empty when
	// the header is absent.
	EventType string

	// Headers holds all string-typed headers.
	Headers map[string]string

	// Payload is the message body, normally JSON.
	Payload []byte
}

// esParser is a stateful byte-buffer consumer: feed it reads of any
// size and drain complete frames. Frames split across reads stay
// buffered until whole.
type esParser struct {
	buf []byte
}

// Feed appends upstream bytes.
func (p *esParser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
}

// Next returns the next complete frame, or nil when more bytes are
// needed.
func (p *esParser) Next() (*esFrame, error) {
	if len(p.buf) < esPreludeLen {
		return nil, nil
	}
	total := binary.BigEndian.Uint32(p.buf[0:4])
	headersLen := binary.BigEndian.Uint32(p.buf[4:8])

	if total < esPreludeLen+esCRCLen || headersLen > total-esPreludeLen-esCRCLen {
		return nil, fmt.Errorf("eventstream: invalid frame lengths (total=%d headers=%d)", total, headersLen)
	}
	if uint32(len(p.buf)) < total {
		return nil, nil
	}

	msg := p.buf[:total]
	p.buf = p.buf[total:]

	headerBytes := msg[esPreludeLen : esPreludeLen+headersLen]
	payload := msg[esPreludeLen+headersLen : total-esCRCLen]

	headers, err := parseESHeaders(headerBytes)
	if err != nil {
		return nil, err
	}

	frame := &esFrame{
		EventType: headers[":event-type"],
		Headers:   headers,
		Payload:   append([]byte(nil), payload...),
	}
	return frame, nil
}

// parseESHeaders decodes the header block. String values are collected;
// other types are skipped by their fixed or length-prefixed size.
func parseESHeaders(data []byte) (map[string]string, error) {
	headers := map[string]string{}
	for len(data) > 0 {
		nameLen := int(data[0])
		data = data[1:]
		if len(data) < nameLen+1 {
			return nil, fmt.Errorf("eventstream: truncated header name")
		}
		name := string(data[:nameLen])
		valueType := data[nameLen]
		data = data[nameLen+1:]

		switch valueType {
		case esTypeBoolTrue, esTypeBoolFalse:
			// No value bytes.
		case esTypeByte:
			data = skipES(data, 1)
		case esTypeShort:
			data = skipES(data, 2)
		case esTypeInteger:
			data = skipES(data, 4)
		case esTypeLong, esTypeTimestamp:
			data = skipES(data, 8)
		case esTypeUUID:
			data = skipES(data, 16)
		case esTypeByteArray, esTypeString:
			if len(data) < 2 {
				return nil, fmt.Errorf("eventstream: truncated header length")
			}
			valueLen := int(binary.BigEndian.Uint16(data[:2]))
			data = data[2:]
			if len(data) < valueLen {
				return nil, fmt.Errorf("eventstream: truncated header value")
			}
			if valueType == esTypeString {
				headers[name] = string(data[:valueLen])
			}
			data = data[valueLen:]
		default:
			return nil, fmt.Errorf("eventstream: unknown header type %d", valueType)
		}
		if data == nil {
			return nil, fmt.Errorf("eventstream: truncated header value")
		}
	}
	return headers, nil
}

func skipES(data []byte, n int) []byte {
	if len(data) < n {
		return nil
	}
	return data[n:]
}
