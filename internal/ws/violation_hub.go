package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// ViolationPayload is pushed to proctor/admin dashboards when a student
// logs a violation.
type ViolationPayload struct {
	ID               string         `json:"id"`
	ExamID           string         `json:"exam_id"`
	StudentID        string         `json:"student_id"`
	StudentName      string         `json:"student_name,omitempty"`
	ViolationType    string         `json:"violation_type"`
	Severity         string         `json:"severity"`
	ViolationCount   int            `json:"violation_count"`
	CausedAutoSubmit bool           `json:"caused_auto_submit"`
	Timestamp        time.Time      `json:"timestamp"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

type violationMessage struct {
	examID  string
	payload []byte
}

// ViolationHub fans violation events out to dashboard clients, scoped by
// the exams each proctor supervises.
type ViolationHub struct {
	register   chan *violationClient
	unregister chan *violationClient
	broadcast  chan violationMessage
	clients    map[*violationClient]struct{}
}

func NewViolationHub() *ViolationHub {
	return &ViolationHub{
		register:   make(chan *violationClient),
		unregister: make(chan *violationClient),
		broadcast:  make(chan violationMessage, 256),
		clients:    make(map[*violationClient]struct{}),
	}
}

func (h *ViolationHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				client.conn.Close()
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if !client.allowAll {
					if _, ok := client.allowedExams[msg.examID]; !ok {
						continue
					}
				}
				select {
				case client.send <- msg.payload:
				default:
					delete(h.clients, client)
					close(client.send)
					client.conn.Close()
				}
			}
		}
	}
}

// Broadcast pushes payload to all clients allowed to see its exam.
func (h *ViolationHub) Broadcast(payload ViolationPayload) {
	if h == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ws: failed to marshal payload: %v", err)
		return
	}
	h.broadcast <- violationMessage{
		examID:  payload.ExamID,
		payload: data,
	}
}

type violationClient struct {
	hub          *ViolationHub
	conn         *websocket.Conn
	send         chan []byte
	allowedExams map[string]struct{}
	allowAll     bool
}

func newViolationClient(hub *ViolationHub, conn *websocket.Conn, allowed map[string]struct{}, allowAll bool) *violationClient {
	return &violationClient{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
		allowedExams: allowed,
		allowAll:     allowAll,
	}
}

func (c *violationClient) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *violationClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			if err := w.Close(); err != nil {
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
