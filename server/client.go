package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/helical/genefold/track"
)

// Websocket timeouts follow the gorilla chat example conventions.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = 54 * time.Second // must be less than pongWait
	maxMessageSize   = 64 * 1024
	clientSendBuffer = 32
)

// CommandMessage is a client-to-server request.
type CommandMessage struct {
	Type  string `json:"type"` // "list", "status", "cancel", "ping"
	JobID string `json:"job_id,omitempty"`
}

// JobUpdateMessage is a server-to-client job event or status reply.
type JobUpdateMessage struct {
	Type      string     `json:"type"`
	Job       *track.Job `json:"job,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// JobListMessage is the reply to a list command.
type JobListMessage struct {
	Type      string      `json:"type"`
	Jobs      []track.Job `json:"jobs"`
	Timestamp int64       `json:"timestamp"`
}

// ErrorMessage reports a failed command back to the requesting client.
type ErrorMessage struct {
	Type  string `json:"type"`
	JobID string `json:"job_id,omitempty"`
	Error string `json:"error"`
}

// Client is one websocket connection.
type Client struct {
	server    *Server
	conn      *websocket.Conn
	send      chan any
	id        string
	closeOnce sync.Once
}

// readPump reads commands until the connection drops, then unregisters.
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.server.log.Warnw("Websocket read error", "client_id", c.id, "error", err)
			}
			return
		}

		var msg CommandMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.server.log.Warnw("Malformed client message", "client_id", c.id, "error", err)
			continue
		}
		c.routeMessage(&msg)
	}
}

func (c *Client) routeMessage(msg *CommandMessage) {
	switch msg.Type {
	case "list":
		c.handleList()
	case "status":
		c.handleStatus(msg.JobID)
	case "cancel":
		c.handleCancel(msg.JobID)
	case "ping":
		// Deadline already refreshed by the pong handler.
	default:
		c.server.log.Debugw("Unknown message type", "type", msg.Type, "client_id", c.id)
	}
}

// listLimit bounds a single job_list reply.
const listLimit = 200

func (c *Client) handleList() {
	jobs, err := c.server.tracker.ListActive(listLimit)
	if err != nil {
		c.sendJSON(ErrorMessage{Type: "error", Error: err.Error()})
		return
	}
	c.sendJSON(JobListMessage{Type: "job_list", Jobs: jobs, Timestamp: time.Now().Unix()})
}

func (c *Client) handleStatus(jobID string) {
	if jobID == "" {
		c.sendJSON(ErrorMessage{Type: "error", Error: "status requires a job_id"})
		return
	}
	job, err := c.server.tracker.Get(jobID)
	if err != nil {
		c.sendJSON(ErrorMessage{Type: "error", JobID: jobID, Error: err.Error()})
		return
	}
	c.sendJSON(JobUpdateMessage{Type: "job_status", Job: &job, Timestamp: time.Now().Unix()})
}

func (c *Client) handleCancel(jobID string) {
	if jobID == "" {
		c.sendJSON(ErrorMessage{Type: "error", Error: "cancel requires a job_id"})
		return
	}
	if err := c.server.tracker.Cancel(jobID); err != nil {
		c.sendJSON(ErrorMessage{Type: "error", JobID: jobID, Error: err.Error()})
		return
	}
	c.server.log.Infow("Job cancel requested over websocket", "job_id", jobID, "client_id", c.id)
}

func (c *Client) sendJSON(msg any) {
	select {
	case c.send <- msg:
	default:
		c.server.log.Warnw("Client send channel full, dropping reply", "client_id", c.id)
	}
}

// writePump writes queued messages and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.server.ctx.Done():
			return

		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.log.Debugw("Websocket write error", "client_id", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close shuts the send channel exactly once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
