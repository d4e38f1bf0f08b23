package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Static is an offline provider that streams a canned reply word by word.
// It backs the "static" backend for local development and doubles as a scripted provider in tests.
type Static struct {
	mu        sync.Mutex
	reply     func(Request) string
	delay     time.Duration
	failAfter int
	failErr   error
	calls     []Request
}

// NewStatic returns a provider answering with reply(req); nil echoes the last user turn.
func NewStatic(reply func(Request) string) *Static {
	if reply == nil {
		reply = echoReply
	}
	return &Static{reply: reply, failAfter: -1}
}

// WithDelay pauses between tokens.
func (s *Static) WithDelay(d time.Duration) *Static {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
	return s
}

// FailAfter makes the next streams fail with err after n tokens. n < 0 disables failures.
func (s *Static) FailAfter(n int, err error) *Static {
	s.mu.Lock()
	s.failAfter, s.failErr = n, err
	s.mu.Unlock()
	return s
}

// Calls returns the requests seen so far.
func (s *Static) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}

func (s *Static) Name() string { return "static" }

func (s *Static) Stream(ctx context.Context, req Request) <-chan Chunk {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	reply, delay, failAfter, failErr := s.reply(req), s.delay, s.failAfter, s.failErr
	s.mu.Unlock()

	return produce(ctx, func(emit func(string) error) error {
		for i, chunk := range splitIntoChunks(reply) {
			if failAfter >= 0 && i >= failAfter {
				return failErr
			}
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err := emit(chunk); err != nil {
				return err
			}
		}
		if failAfter >= 0 && failErr != nil {
			return failErr
		}
		return nil
	})
}

func echoReply(req Request) string {
	for i := len(req.History) - 1; i >= 0; i-- {
		if req.History[i].Role == "user" {
			return fmt.Sprintf("You said: %s", req.History[i].Content)
		}
	}
	return "Hello! How can I help you today?"
}

// splitIntoChunks splits on word boundaries, keeping the separating spaces with the preceding word.
func splitIntoChunks(s string) []string {
	var chunks []string
	for len(s) > 0 {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			chunks = append(chunks, s)
			break
		}
		chunks = append(chunks, s[:i+1])
		s = s[i+1:]
	}
	return chunks
}
