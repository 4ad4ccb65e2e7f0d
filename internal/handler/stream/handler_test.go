package stream

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-starter/internal/model/chat"
	chatService "github.com/zhouzirui/chat-starter/internal/service/chat"
)

type stubSource struct {
	mu       sync.Mutex
	fn       func(chatService.Event)
	canceled bool
}

func (s *stubSource) State() chat.ConnectionState { return chat.Disconnected }

func (s *stubSource) Subscribe(fn func(chatService.Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
	return func() {
		s.mu.Lock()
		s.canceled = true
		s.mu.Unlock()
	}
}

func (s *stubSource) publish(ev chatService.Event) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	fn(ev)
}

// readEvent returns the "event:" and "data:" lines of the next SSE message.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return event, data
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStreamSendsStatusAndEntries(t *testing.T) {
	source := &stubSource{}
	srv := httptest.NewServer(New(source))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	event, data := readEvent(t, reader)
	assert.Equal(t, "status", event)
	assert.JSONEq(t, `{"status":"disconnected"}`, data)

	source.publish(chatService.Event{Kind: chatService.EventStateChanged, State: chat.Connected})
	event, data = readEvent(t, reader)
	assert.Equal(t, "status", event)
	assert.JSONEq(t, `{"status":"connected"}`, data)

	source.publish(chatService.Event{
		Kind:  chatService.EventEntryAppended,
		State: chat.Connected,
		Entry: chat.LogEntry{Text: "you: hi", Origin: chat.OriginLocal},
	})
	event, data = readEvent(t, reader)
	assert.Equal(t, "entry", event)
	assert.Contains(t, data, `"text":"you: hi"`)
	assert.Contains(t, data, `"origin":"local"`)
}

func TestStreamKeepsEveryEntryWhenReaderLags(t *testing.T) {
	source := &stubSource{}
	srv := httptest.NewServer(New(source))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	event, _ := readEvent(t, reader)
	require.Equal(t, "status", event)

	const total = bufferSize * 3
	go func() {
		for i := 0; i < total; i++ {
			source.publish(chatService.Event{
				Kind:  chatService.EventEntryAppended,
				Entry: chat.LogEntry{Text: fmt.Sprintf("msg-%d", i), Origin: chat.OriginRemote},
			})
		}
	}()

	for i := 0; i < total; i++ {
		event, data := readEvent(t, reader)
		require.Equal(t, "entry", event)
		require.Contains(t, data, fmt.Sprintf(`"text":"msg-%d"`, i))
	}
}
