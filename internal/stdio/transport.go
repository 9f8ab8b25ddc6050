package stdio

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wagiedev/cwmanager/internal/errors"
)

const (
	// maxMessageSize is the maximum size of one inbound message line.
	maxMessageSize = 1024 * 1024 // 1MB
	// readBufferSize is the initial size of the line reader's buffer.
	readBufferSize = 64 * 1024
	// writeDrainTimeout bounds the wait for a write goroutine after cancellation.
	writeDrainTimeout = time.Second
)

// Transport exchanges newline-delimited JSON messages over a reader/writer
// pair, normally the process's stdin and stdout.
type Transport struct {
	log *slog.Logger
	in  io.Reader
	out io.Writer

	mu     sync.Mutex // Protects writes and closed
	closed bool
}

// New creates a transport reading from in and writing to out.
//
// Nothing other than protocol messages may be written to out; logs belong
// on stderr.
func New(log *slog.Logger, in io.Reader, out io.Writer) *Transport {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Transport{
		log: log.With("component", "stdio"),
		in:  in,
		out: out,
	}
}

// ReadMessages streams inbound lines until EOF, a read error, or cancellation.
//
// Each non-empty line is delivered as its own byte slice; decoding is left to
// the caller so malformed input can be answered. A line longer than
// maxMessageSize is skipped and reported with errors.ErrMessageTooLarge on the
// error channel, after which reading continues; any other error ends reading.
// Both channels are closed when reading stops. A clean EOF closes them without
// sending an error.
func (t *Transport) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	messages := make(chan []byte)
	errs := make(chan error, 1)

	if t.in == nil {
		errs <- errors.ErrTransportNotConnected

		close(messages)
		close(errs)

		return messages, errs
	}

	go func() {
		defer close(errs)
		defer close(messages)
		defer t.log.Debug("ReadMessages goroutine stopped")

		reader := bufio.NewReaderSize(t.in, readBufferSize)
		messageCount := 0

		for {
			line, err := readLine(reader, maxMessageSize)

			switch {
			case stderrors.Is(err, errors.ErrMessageTooLarge):
				t.log.Warn("Skipping oversized input line", "limit", maxMessageSize)

				select {
				case errs <- err:
				case <-ctx.Done():
					return
				}

				continue

			case err != nil && !stderrors.Is(err, io.EOF):
				t.log.Error("Error while reading input", "error", err)

				errs <- fmt.Errorf("read input: %w", err)

				return
			}

			if msg := bytes.TrimSpace(line); len(msg) > 0 {
				messageCount++
				t.log.Debug("Received message", "message_count", messageCount, "data_len", len(msg))

				select {
				case messages <- msg:
				case <-ctx.Done():
					t.log.Debug("Context cancelled during message send", "error", ctx.Err())

					return
				}
			}

			if err != nil {
				t.log.Debug("Input reached EOF", "message_count", messageCount)

				return
			}
		}
	}()

	return messages, errs
}

// readLine returns the next line without its terminator. The returned slice
// is owned by the caller. A line longer than limit is consumed up to and
// including its newline and reported as errors.ErrMessageTooLarge. At the end
// of input it returns the final unterminated line, if any, with io.EOF.
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte

	for {
		chunk, err := r.ReadSlice('\n')
		if len(line)+len(chunk) > limit+1 || (len(line)+len(chunk) > limit && !bytes.HasSuffix(chunk, []byte{'\n'})) {
			if stderrors.Is(err, bufio.ErrBufferFull) {
				if discardErr := discardLine(r); discardErr != nil && !stderrors.Is(discardErr, io.EOF) {
					return nil, discardErr
				}
			}

			return nil, errors.ErrMessageTooLarge
		}

		// ReadSlice's result is only valid until the next read.
		line = append(line, chunk...)

		switch {
		case err == nil:
			return bytes.TrimSuffix(line, []byte{'\n'}), nil
		case stderrors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return line, err
		}
	}
}

// discardLine skips input up to and including the next newline.
func discardLine(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		if !stderrors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

// SendMessage writes one message followed by a newline.
//
// It is safe for concurrent use; messages are never interleaved. If ctx is
// cancelled while a write is blocked the transport is closed and later calls
// return ErrTransportClosed.
func (t *Transport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.out == nil {
		return errors.ErrTransportNotConnected
	}

	if t.closed {
		return errors.ErrTransportClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Copy rather than append so the caller's backing array is never mutated.
	if len(data) == 0 || data[len(data)-1] != '\n' {
		newData := make([]byte, len(data)+1)
		copy(newData, data)
		newData[len(data)] = '\n'
		data = newData
	}

	done := make(chan error, 1)

	go func() {
		_, err := t.out.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write message", "error", err)

			return fmt.Errorf("write output: %w", err)
		}

		t.log.Debug("Message sent", "data_len", len(data))

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing output")

		t.closed = true

		if closer, ok := t.out.(io.Closer); ok {
			_ = closer.Close()
		}

		select {
		case <-done:
		case <-time.After(writeDrainTimeout):
			t.log.Warn("Write goroutine did not exit after output close, potential leak")
		}

		return ctx.Err()
	}
}

// Close stops further writes. It is safe to call multiple times.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true

	return nil
}
