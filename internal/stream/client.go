package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/eclipse/internal/metrics"
)

const writeTimeout = 30 * time.Second

// eventWriter writes Server-Sent Events to one connection. Every write
// pushes the connection's write deadline forward and flushes.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger
	buf     bytes.Buffer
}

// event sends v as a JSON "data:" event. A non-negative id is sent as the
// event id so a reconnecting client can resume after it.
func (e *eventWriter) event(id int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	e.buf.Reset()
	if id >= 0 {
		e.buf.WriteString("id: ")
		e.buf.WriteString(strconv.Itoa(id))
		e.buf.WriteByte('\n')
	}
	e.buf.WriteString("data: ")
	e.buf.Write(data)
	e.buf.WriteString("\n\n")
	return e.flush("event")
}

// retry sets the client's reconnection delay.
func (e *eventWriter) retry(d time.Duration) error {
	e.buf.Reset()
	fmt.Fprintf(&e.buf, "retry: %d\n\n", d.Milliseconds())
	return e.flush("retry")
}

// keepalive sends an SSE comment.
func (e *eventWriter) keepalive() error {
	e.buf.Reset()
	e.buf.WriteString(":\n\n")
	return e.flush("keepalive")
}

func (e *eventWriter) flush(what string) error {
	if err := e.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		e.logger.Debug("could not set write deadline", "error", err)
	}
	n, err := e.w.Write(e.buf.Bytes())
	if err != nil {
		return fmt.Errorf("%s write: %w", what, err)
	}
	e.flusher.Flush()
	metrics.StreamSent(n)
	return nil
}
