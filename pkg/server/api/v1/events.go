package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vprint/vprint/pkg/event"
	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/server/api"
)

// SnapshotTopic is the type of the first message on a new stream.
const SnapshotTopic = "snapshot"

// Snapshot is the payload of the first message: every job the processor
// still remembers plus current queue counters.
type Snapshot struct {
	Jobs  []api.JobView `json:"jobs"`
	Queue QueueResponse `json:"queue"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The admin listener binds loopback by default; browsers on other
	// origins are allowed to watch.
	CheckOrigin: func(*http.Request) bool { return true },
}

// EventsHandler handles GET /api/v1/events
//
// Upgrades to a websocket and streams bus events as JSON:
//
//	{"type": "job.status", "timestamp": "...", "data": {"job_id": "...", "status": "completed"}}
//
// The optional topic query parameter restricts the stream to one topic.
// A client that cannot keep up with Config.EventBuffer events is dropped.
func EventsHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Events == nil {
			api.WriteJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "event stream disabled")
			return
		}

		topic := strings.TrimSpace(r.URL.Query().Get("topic"))
		switch topic {
		case "":
			topic = event.TopicAll
		case event.TopicAll, event.TopicJobStatus, event.TopicQueueUpdate:
		default:
			api.WriteError(w, r, &ValidationError{Field: "topic", Reason: "must be one of: job.status,queue.update"})
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			log.Warn().Str("component", "api").Err(err).Msg("Websocket upgrade failed")
			return
		}
		streamEvents(r.Context(), conn, deps, topic)
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, deps *api.Deps, topic string) {
	defer conn.Close()
	logger := log.With().Str("component", "api").Str("remote", conn.RemoteAddr().String()).Logger()

	cfg := deps.Config
	buffer := cfg.EventBuffer
	if buffer <= 0 {
		buffer = api.DefaultConfig().EventBuffer
	}
	pingEvery := cfg.PingInterval
	if pingEvery <= 0 {
		pingEvery = api.DefaultConfig().PingInterval
	}
	writeWait := cfg.WriteWait
	if writeWait <= 0 {
		writeWait = api.DefaultConfig().WriteWait
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	pending := make(chan event.Event, buffer)
	unsubscribe := deps.Events.Subscribe(topic, func(_ context.Context, e event.Event) {
		select {
		case pending <- e:
		default:
			cancel(errSlowConsumer)
		}
	})
	defer unsubscribe()

	// Reader: only control frames matter. A read error means the peer left.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel(err)
				return
			}
		}
	}()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}

	if err := write(event.Event{Topic: SnapshotTopic, Time: time.Now(), Data: snapshot(deps)}); err != nil {
		logger.Debug().Err(err).Msg("Failed to send snapshot")
		return
	}
	logger.Debug().Str("topic", topic).Msg("Event stream opened")

	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	for {
		select {
		case e := <-pending:
			if err := write(e); err != nil {
				logger.Debug().Err(err).Msg("Event write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			cause := context.Cause(ctx)
			if cause == errSlowConsumer {
				logger.Warn().Msg("Dropping slow event consumer")
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
					time.Now().Add(writeWait))
			}
			logger.Debug().Err(cause).Msg("Event stream closed")
			return
		}
	}
}

type streamError string

func (e streamError) Error() string { return string(e) }

const errSlowConsumer = streamError("event consumer too slow")

func snapshot(deps *api.Deps) Snapshot {
	var s Snapshot
	if deps.Jobs == nil {
		return s
	}
	recs := deps.Jobs.Jobs(func(job.Record) bool { return true })
	s.Jobs = make([]api.JobView, 0, len(recs))
	for _, rec := range recs {
		s.Jobs = append(s.Jobs, api.NewJobView(rec))
	}
	st := deps.Jobs.Stats()
	s.Queue = QueueResponse{
		Size:       st.Queue.Size,
		Capacity:   st.Queue.Capacity,
		Reserved:   st.Queue.Reserved,
		Peak:       st.Queue.Peak,
		Workers:    st.Workers,
		ActiveJobs: st.Active,
		Unfinished: st.Unfinished,
		Accepting:  st.Accepting,
		ByStatus:   st.ByStatus,
	}
	return s
}
