package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"repobrief/internal/apperr"
	"repobrief/internal/logging"
	"repobrief/internal/pipeline"
	"repobrief/internal/types"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = (streamPongWait * 9) / 10
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Stream message types.
const (
	MsgStage  = "stage"
	MsgResult = "result"
	MsgError  = "error"
)

type streamOutbound struct {
	Type     string          `json:"type"`
	Stage    pipeline.Stage  `json:"stage,omitempty"`
	Message  string          `json:"message,omitempty"`
	Progress int32           `json:"progress,omitempty"`
	Data     map[string]any  `json:"data,omitempty"`
	Result   *types.Response `json:"result,omitempty"`
	Error    *apperr.Body    `json:"error,omitempty"`
}

// HandleStream runs one summarization per connection. The client sends
// {"github_url": "..."}; the server answers with stage events followed by
// exactly one result or error message, then closes.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := logging.From(ctx)

	if err := conn.SetReadDeadline(time.Now().Add(streamPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	write := func(out streamOutbound) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
			return false
		}
		return conn.WriteJSON(out) == nil
	}
	fail := func(err error) {
		e := apperr.From(err)
		body := e.Envelope().Error
		write(streamOutbound{Type: MsgError, Error: &body})
		closeStream(conn)
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	url, err := decodeRequest(bytes.NewReader(raw))
	if err != nil {
		fail(err)
		return
	}

	// Reading keeps pong handling alive and notices a client that leaves.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	events := make(chan pipeline.Event, 64)
	done := make(chan struct{})
	var (
		resp   types.Response
		runErr error
	)
	go func() {
		defer close(done)
		resp, runErr = h.summarizer.Summarize(pipeline.WithEmitter(ctx, pipeline.ChannelEmitter{Ch: events}), url)
	}()

	ticker := time.NewTicker(streamPingEvery)
	defer ticker.Stop()
	for {
		select {
		case ev := <-events:
			if !write(stageMessage(ev)) {
				cancel()
				<-done
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				cancel()
				<-done
				return
			}
		case <-done:
			for drained := false; !drained; {
				select {
				case ev := <-events:
					write(stageMessage(ev))
				default:
					drained = true
				}
			}
			if runErr != nil {
				log.Warn("stream summarize failed", slog.Any("err", runErr))
				fail(runErr)
				return
			}
			write(streamOutbound{Type: MsgResult, Result: &resp})
			closeStream(conn)
			return
		}
	}
}

func stageMessage(ev pipeline.Event) streamOutbound {
	return streamOutbound{
		Type:     MsgStage,
		Stage:    ev.Stage,
		Message:  ev.Message,
		Progress: ev.Progress,
		Data:     ev.Data,
	}
}

func closeStream(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}
