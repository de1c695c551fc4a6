package reasoning

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
)

var errStreamTruncated = errors.New("stream ended before message_stop")

// sseReader parses server-sent events from the upstream body.
type sseReader struct {
	reader *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{reader: bufio.NewReader(r)}
}

// ReadEvent returns the next event name and its data. io.EOF marks the end of the stream.
func (s *sseReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return "", nil, err
		}
		atEOF := err == io.EOF

		line = bytes.TrimRight(line, "\r\n")
		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[6:]))
		case bytes.HasPrefix(line, []byte("data:")):
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		case len(line) == 0 && !atEOF:
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			eventType = ""
		}

		if atEOF {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			return "", nil, io.EOF
		}
	}
}

type blockStart struct {
	Index        int `json:"index"`
	ContentBlock struct {
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"content_block"`
}

type blockDelta struct {
	Index int `json:"index"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		Thinking    string `json:"thinking"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
}

type blockStop struct {
	Index int `json:"index"`
}

type toolBlock struct {
	name  string
	input strings.Builder
}

// streamTranslator turns upstream SSE events into stream events, keeping
// per-block state for tool calls whose input arrives in fragments.
type streamTranslator struct {
	tools map[int]*toolBlock
}

func newStreamTranslator() *streamTranslator {
	return &streamTranslator{tools: make(map[int]*toolBlock)}
}

// translate returns the events to emit, whether the message is complete, and
// any terminal failure carried by the upstream event.
func (t *streamTranslator) translate(name string, data []byte) ([]entities.StreamEvent, bool, error) {
	switch name {
	case "message_start":
		return []entities.StreamEvent{{Type: entities.StreamEventStatus, Content: "started"}}, false, nil

	case "content_block_start":
		var ev blockStart
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, false, err
		}
		switch ev.ContentBlock.Type {
		case "thinking":
			return []entities.StreamEvent{{Type: entities.StreamEventStatus, Content: "thinking"}}, false, nil
		case "text":
			return []entities.StreamEvent{{Type: entities.StreamEventStatus, Content: "writing"}}, false, nil
		case "tool_use":
			t.tools[ev.Index] = &toolBlock{name: ev.ContentBlock.Name}
		}
		return nil, false, nil

	case "content_block_delta":
		var ev blockDelta
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, false, err
		}
		switch ev.Delta.Type {
		case "thinking_delta":
			return []entities.StreamEvent{{Type: entities.StreamEventThinking, Content: ev.Delta.Thinking}}, false, nil
		case "text_delta":
			return []entities.StreamEvent{{Type: entities.StreamEventText, Content: ev.Delta.Text}}, false, nil
		case "input_json_delta":
			if tool, ok := t.tools[ev.Index]; ok {
				tool.input.WriteString(ev.Delta.PartialJSON)
			}
		}
		return nil, false, nil

	case "content_block_stop":
		var ev blockStop
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, false, err
		}
		tool, ok := t.tools[ev.Index]
		if !ok {
			return nil, false, nil
		}
		delete(t.tools, ev.Index)
		input := strings.TrimSpace(tool.input.String())
		if input == "" || !json.Valid([]byte(input)) {
			input = "{}"
		}
		payload, err := json.Marshal(struct {
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		}{Name: tool.name, Input: json.RawMessage(input)})
		if err != nil {
			return nil, false, err
		}
		return []entities.StreamEvent{{Type: entities.StreamEventToolUse, Content: string(payload)}}, false, nil

	case "message_stop":
		return nil, true, nil

	case "error":
		return nil, false, classifyStreamError(data)
	}

	// ping, message_delta and unknown events carry nothing for the consumer
	return nil, false, nil
}

// upstreamStream is an open response body together with its parse state.
type upstreamStream struct {
	body       io.ReadCloser
	cancel     context.CancelFunc
	reader     *sseReader
	translator *streamTranslator
	pending    []entities.StreamEvent
	done       bool
}

func newUpstreamStream(body io.ReadCloser, cancel context.CancelFunc) *upstreamStream {
	return &upstreamStream{
		body:       body,
		cancel:     cancel,
		reader:     newSSEReader(body),
		translator: newStreamTranslator(),
	}
}

// next reads one upstream event and returns what it translates to.
func (s *upstreamStream) next(ctx context.Context) ([]entities.StreamEvent, bool, error) {
	name, data, err := s.reader.ReadEvent()
	if err != nil {
		if err == io.EOF {
			err = errStreamTruncated
		}
		return nil, false, classifyTransport(ctx, err)
	}

	out, done, err := s.translator.translate(name, data)
	if err != nil {
		var gwErr *providers.GatewayError
		if !errors.As(err, &gwErr) {
			err = &providers.GatewayError{Kind: providers.FailureServerError, Message: "malformed stream event", Err: err}
		}
		return nil, false, err
	}
	return out, done, nil
}

// prime reads until the first consumer-visible event or the end of the
// message, buffering what it read for pump.
func (s *upstreamStream) prime(ctx context.Context) error {
	for len(s.pending) == 0 && !s.done {
		out, done, err := s.next(ctx)
		if err != nil {
			return err
		}
		s.pending, s.done = out, done
	}
	return nil
}

func (s *upstreamStream) close() {
	_ = s.body.Close()
	s.cancel()
}

// pump emits the primed events, then reads the upstream body until completion
// and closes events. A failure from here on becomes one terminal error event.
func (c *Client) pump(ctx context.Context, stream *upstreamStream, model string, events chan<- entities.StreamEvent) {
	defer close(events)
	defer stream.close()

	send := func(ev entities.StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	out, done := stream.pending, stream.done
	stream.pending = nil
	for {
		for _, ev := range out {
			if !send(ev) {
				return
			}
		}
		if done {
			return
		}

		var err error
		out, done, err = stream.next(ctx)
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str("model", model).
				Str("failure_class", string(providers.FailureKindOf(err))).
				Msg("reasoning stream failed mid-flight")
			send(entities.StreamEvent{Type: entities.StreamEventError, Content: err.Error(), Err: err})
			return
		}
	}
}
