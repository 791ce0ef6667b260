package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kliewerdaniel/News02/logger"
	"github.com/kliewerdaniel/News02/schedule"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	schedule.Snapshot
	NextJob *schedule.Job `json:"next_job"` // enabled job with the earliest next_run, null when none
}

// HandleStatus returns the execution status, the immediate queue and the
// next scheduled job
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	next, err := s.jobs.GetNextScheduledJob()
	if err != nil {
		writeWrappedError(w, r, s.logger, err, "failed to get next scheduled job")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Snapshot: s.snapshot(), NextJob: next})
}

// HandleStatusWebSocket pushes a snapshot on connect and after every
// status or queue change
func (s *Server) HandleStatusWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", logger.FieldError, err)
		return
	}
	defer conn.Close()
	s.logger.Debugw("Status client connected", logger.FieldAddress, r.RemoteAddr)

	// Reader: handles pong/close frames
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(s.statusPoll)
	defer poll.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	var last schedule.Snapshot
	sent := false
	for {
		snap := s.snapshot()
		if !sent || changed(last, snap) {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				s.logger.Debugw("Status client write failed", logger.FieldError, err)
				return
			}
			last, sent = snap, true
		}

		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
		}
	}
}

func (s *Server) snapshot() schedule.Snapshot {
	if s.ticker == nil {
		return schedule.Snapshot{Status: schedule.NewStatus().Snapshot(), Queue: []schedule.QueuedJob{}}
	}
	snap := s.ticker.Snapshot()
	if snap.Queue == nil {
		snap.Queue = []schedule.QueuedJob{}
	}
	return snap
}

func changed(a, b schedule.Snapshot) bool {
	if a.Status.Version != b.Status.Version || len(a.Queue) != len(b.Queue) {
		return true
	}
	for i := range a.Queue {
		if a.Queue[i].ID != b.Queue[i].ID {
			return true
		}
	}
	return false
}
