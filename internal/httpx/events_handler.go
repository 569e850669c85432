package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/rs/zerolog/log"

	"github.com/economato/go-order-desk/internal/events"
)

const keepAlive = 25 * time.Second

// streamEvents relays desk events as server-sent events until the client
// goes away. ?kind= narrows the stream and may repeat or hold a
// comma-separated list.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || s.Bus == nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Detail: internalMessage})
		return
	}

	var kinds []events.Kind
	for _, raw := range r.URL.Query()["kind"] {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				kinds = append(kinds, events.Kind(k))
			}
		}
	}
	sub := s.Bus.Subscribe(kinds...)
	defer sub.Close()

	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	tick := time.NewTicker(keepAlive)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case env, ok := <-sub.C():
			if !ok {
				return
			}
			err := sse.Encode(w, sse.Event{Id: env.EventID, Event: string(env.Kind), Data: env})
			if err != nil {
				log.Debug().Err(err).Msg("event stream closed")
				return
			}
			flusher.Flush()
		}
	}
}
