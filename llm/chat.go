package llm

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Roles understood by chat completion endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation prompt.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest configures a single completion call. Stop words never appear
// in the returned text, whether the server honors them or not.
type ChatRequest struct {
	Messages    []ChatMessage
	Stop        []string
	MaxTokens   int
	Temperature float64
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stop        []string      `json:"stop,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Chat runs one completion and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	payload := chatPayload{
		Model:       c.chatModel,
		Messages:    req.Messages,
		Stop:        req.Stop,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	resp := &chatResponse{}
	if err := c.post(ctx, chatCompletionsPath, payload, resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.Wrap(ErrFatal, "no choices in completion response")
	}
	content, _ := truncateAtStop(resp.Choices[0].Message.Content, req.Stop)
	return content, nil
}

// doneSentinel terminates a server-sent event stream.
const doneSentinel = "[DONE]"

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatStream yields the text of a streamed completion fragment by fragment.
// Fragments never contain a stop word, even one split across chunk
// boundaries: a trailing run that could begin a stop word is held back until
// the following chunk settles it one way or the other.
type ChatStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	stop    []string
	held    string
	done    bool
}

// StreamChat starts a streamed completion. The caller must Close the stream.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (*ChatStream, error) {
	payload := chatPayload{
		Model:       c.chatModel,
		Messages:    req.Messages,
		Stop:        req.Stop,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode request")
	}
	resp, err := c.send(ctx, chatCompletionsPath, body)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ChatStream{body: resp.Body, scanner: sc, stop: req.Stop}, nil
}

// Recv returns the next fragment of assistant text, or io.EOF once the
// stream ends or a stop word terminates the reply.
func (s *ChatStream) Recv() (string, error) {
	if s.done {
		return s.flush()
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == doneSentinel {
			s.done = true
			return s.flush()
		}
		chunk := &chatChunk{}
		if err := json.Unmarshal([]byte(data), chunk); err != nil {
			return "", errors.Wrapf(ErrFatal, "could not decode stream chunk: %v", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		s.held += chunk.Choices[0].Delta.Content
		if out, cut := truncateAtStop(s.held, s.stop); cut {
			// Anything after the stop word, including the word itself,
			// is discarded.
			s.done = true
			s.held = ""
			if out == "" {
				return "", io.EOF
			}
			return out, nil
		}
		keep := holdbackLen(s.held, s.stop)
		if emit := s.held[:len(s.held)-keep]; emit != "" {
			s.held = s.held[len(s.held)-keep:]
			return emit, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", errors.Wrapf(ErrRetriable, "could not read stream: %v", err)
	}
	s.done = true
	return s.flush()
}

// flush releases the held-back tail once no further chunk can complete a
// stop word.
func (s *ChatStream) flush() (string, error) {
	if s.held != "" {
		out := s.held
		s.held = ""
		return out, nil
	}
	return "", io.EOF
}

// ReadAll drains the stream into a single string.
func (s *ChatStream) ReadAll() (string, error) {
	b := strings.Builder{}
	for {
		fragment, err := s.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(fragment)
	}
}

// Close releases the underlying connection.
func (s *ChatStream) Close() error {
	return s.body.Close()
}

// truncateAtStop cuts text at the earliest occurrence of any stop word and
// reports whether a cut happened.
func truncateAtStop(text string, stop []string) (string, bool) {
	cut := false
	for _, word := range stop {
		if word == "" {
			continue
		}
		if i := strings.Index(text, word); i >= 0 {
			text = text[:i]
			cut = true
		}
	}
	return text, cut
}

// holdbackLen returns the length of the longest suffix of text that is a
// proper prefix of some stop word. Those bytes cannot be emitted yet because
// the next chunk may complete the word.
func holdbackLen(text string, stop []string) int {
	longest := 0
	for _, word := range stop {
		max := len(word) - 1
		if max > len(text) {
			max = len(text)
		}
		for n := max; n > longest; n-- {
			if strings.HasSuffix(text, word[:n]) {
				longest = n
				break
			}
		}
	}
	return longest
}
