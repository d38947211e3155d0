package http

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
)

// pingInterval is the SSE keep-alive cadence (§6: "15-second heartbeat
// event: ping").
const pingInterval = 15 * time.Second

// writeSSE drains events onto w as an SSE stream, framing each record
// `id: {epochMs}-{rand}\ndata: {json}\n\n` per §6, with a 15-second
// `event: ping` heartbeat. An event that fails to marshal is written as an
// `event: error` record and the stream continues; a closed channel, a failed
// write or a client disconnect ends the stream without an error record.
func writeSSE(w http.ResponseWriter, r *http.Request, events <-chan a2a.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeRecord(w, event); err != nil {
				log.Error("sse: write failed, dropping client", "err", err)
				return
			}
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, "event: ping\ndata: {}\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeRecord(w http.ResponseWriter, event a2a.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", errorRecord(err))
		return nil
	}

	_, err = fmt.Fprintf(w, "id: %s\ndata: %s\n\n", recordID(), data)
	return err
}

func recordID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixMilli(), rand.Int63())
}

func errorRecord(err error) []byte {
	data, marshalErr := json.Marshal(struct {
		Message string `json:"message"`
	}{Message: err.Error()})
	if marshalErr != nil {
		return []byte(`{"message":"internal error"}`)
	}
	return data
}
