package stdio

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/cwmanager/internal/errors"
)

// chunkReader delivers data in controlled chunks to simulate partial reads.
type chunkReader struct {
	chunks [][]byte
	index  int
}

func newChunkReader(chunks ...string) *chunkReader {
	byteChunks := make([][]byte, len(chunks))
	for i, chunk := range chunks {
		byteChunks[i] = []byte(chunk)
	}

	return &chunkReader{chunks: byteChunks}
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.index >= len(r.chunks) {
		return 0, io.EOF
	}

	chunk := r.chunks[r.index]
	r.index++

	return copy(p, chunk), nil
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func collect(t *testing.T, tr *Transport) ([]string, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, errs := tr.ReadMessages(ctx)

	var lines []string
	for msg := range messages {
		lines = append(lines, string(msg))
	}

	return lines, <-errs
}

func TestReadMessages_SplitsLines(t *testing.T) {
	tr := New(nil, newChunkReader(
		`{"id":1}`+"\n"+`{"id":2}`+"\n",
		"\n   \n",
		`{"id"`, `:3}`, "\n",
		`{"id":4}`,
	), io.Discard)

	lines, err := collect(t, tr)
	require.NoError(t, err)
	require.Equal(t, []string{`{"id":1}`, `{"id":2}`, `{"id":3}`, `{"id":4}`}, lines)
}

func TestReadMessages_MalformedLinesAreDelivered(t *testing.T) {
	tr := New(nil, strings.NewReader("not json\n{\"ok\":true}\n"), io.Discard)

	lines, err := collect(t, tr)
	require.NoError(t, err)
	require.Equal(t, []string{"not json", `{"ok":true}`}, lines)
}

func TestReadMessages_OversizedLineIsSkipped(t *testing.T) {
	huge := strings.Repeat("x", maxMessageSize+1)
	tr := New(nil, strings.NewReader(`{"id":1}`+"\n"+huge+"\n"+`{"id":2}`+"\n"), io.Discard)

	lines, err := collect(t, tr)
	require.ErrorIs(t, err, errors.ErrMessageTooLarge)
	require.Equal(t, []string{`{"id":1}`, `{"id":2}`}, lines)
}

func TestReadMessages_ReadingContinuesAfterEachOversizedLine(t *testing.T) {
	huge := strings.Repeat("y", maxMessageSize*2)
	tr := New(nil, strings.NewReader(huge+"\n"+`{"id":1}`+"\n"+huge+"\n"+`{"id":2}`), io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, errs := tr.ReadMessages(ctx)

	var (
		lines     []string
		oversized int
	)

	for messages != nil || errs != nil {
		select {
		case msg, ok := <-messages:
			if !ok {
				messages = nil

				continue
			}

			lines = append(lines, string(msg))
		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			require.ErrorIs(t, err, errors.ErrMessageTooLarge)

			oversized++
		}
	}

	require.Equal(t, 2, oversized)
	require.Equal(t, []string{`{"id":1}`, `{"id":2}`}, lines)
}

func TestReadLine_Limit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
		large int
	}{
		{name: "at limit", input: "abcd\nxy\n", want: []string{"abcd", "xy"}},
		{name: "over limit", input: "abcde\nxy\n", want: []string{"xy"}, large: 1},
		{name: "unterminated at limit", input: "abcd", want: []string{"abcd"}},
		{name: "unterminated over limit", input: "abcde", large: 1},
		{name: "much longer than buffer", input: strings.Repeat("z", 40) + "\nok\n", want: []string{"ok"}, large: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The minimum bufio size is 16 bytes, so long lines span several reads.
			r := bufio.NewReaderSize(strings.NewReader(tt.input), 16)

			var (
				got   []string
				large int
			)

			for {
				line, err := readLine(r, 4)
				if stderrors.Is(err, errors.ErrMessageTooLarge) {
					large++

					continue
				}

				if len(line) > 0 {
					got = append(got, string(line))
				}

				if err != nil {
					require.ErrorIs(t, err, io.EOF)

					break
				}
			}

			require.Equal(t, tt.want, got)
			require.Equal(t, tt.large, large)
		})
	}
}

func TestReadMessages_NotConnected(t *testing.T) {
	tr := New(nil, nil, io.Discard)

	lines, err := collect(t, tr)
	require.ErrorIs(t, err, errors.ErrTransportNotConnected)
	require.Empty(t, lines)
}

func TestReadMessages_ContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()

	tr := New(nil, pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	messages, errs := tr.ReadMessages(ctx)

	go func() {
		_, _ = pw.Write([]byte("{\"a\":1}\n"))
	}()

	// Nobody receives the message, so the reader is parked on the send.
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, pw.Close())

	received := 0
	for range messages {
		received++
	}

	require.LessOrEqual(t, received, 1)
	require.NoError(t, <-errs)
}

func TestSendMessage_AppendsNewline(t *testing.T) {
	var out bytes.Buffer

	tr := New(nil, nil, &out)

	data := make([]byte, 0, 64)
	data = append(data, `{"a":1}`...)

	require.NoError(t, tr.SendMessage(context.Background(), data))
	require.NoError(t, tr.SendMessage(context.Background(), []byte("{\"b\":2}\n")))

	require.Equal(t, "{\"a\":1}\n{\"b\":2}\n", out.String())
	require.Equal(t, `{"a":1}`, string(data), "caller's slice must not be mutated")
}

func TestSendMessage_ConcurrentWritesDoNotInterleave(t *testing.T) {
	out := &syncBuffer{}
	tr := New(nil, nil, out)

	const writers = 20

	var wg sync.WaitGroup
	for range writers {
		wg.Go(func() {
			require.NoError(t, tr.SendMessage(context.Background(), []byte(strings.Repeat("z", 1000))))
		})
	}

	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, writers)

	for _, line := range lines {
		require.Len(t, line, 1000)
	}
}

func TestSendMessage_Errors(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		tr := New(nil, nil, nil)
		require.ErrorIs(t, tr.SendMessage(context.Background(), []byte("{}")), errors.ErrTransportNotConnected)
	})

	t.Run("closed", func(t *testing.T) {
		tr := New(nil, nil, io.Discard)
		require.NoError(t, tr.Close())
		require.NoError(t, tr.Close())
		require.ErrorIs(t, tr.SendMessage(context.Background(), []byte("{}")), errors.ErrTransportClosed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		tr := New(nil, nil, io.Discard)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.ErrorIs(t, tr.SendMessage(ctx, []byte("{}")), context.Canceled)
	})

	t.Run("blocked write cancelled", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer pr.Close()

		tr := New(nil, nil, pw)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		require.ErrorIs(t, tr.SendMessage(ctx, []byte("{}")), context.DeadlineExceeded)
		require.ErrorIs(t, tr.SendMessage(context.Background(), []byte("{}")), errors.ErrTransportClosed)
	})
}
