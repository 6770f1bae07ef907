package server

import (
	"encoding/json"
	"net/http"

	"chain-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop for connect/disconnect lifecycle
func (s *Server) handleWebsockets() {
	for {
		select {
		case client, ok := <-s.register:
			if !ok {
				return
			}
			s.mu.Lock()
			s.clients[client] = struct{}{}
			s.mu.Unlock()

		case client, ok := <-s.unregister:
			if !ok {
				return
			}
			s.dropClient(client)
		}
	}
}

// -----------------------------------------------------------------------------

// dropClient removes the connection from every stream it joined and
// releases the stream if it was the last subscriber.
func (s *Server) dropClient(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, client)

	joined := make([]string, 0, len(client.streams))
	for stream := range client.streams {
		joined = append(joined, stream)
		if subs, ok := s.streamSubs[stream]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(s.streamSubs, stream)
			}
		}
	}
	client.streams = make(map[string]struct{})
	close(client.done)
	s.mu.Unlock()

	// Deactivation happens outside the lock; the controller takes its own
	for _, stream := range joined {
		s.controller.Deactivate(stream)
	}

	s.Logger.Info("Client disconnected (left %d streams)", len(joined))
}

// -----------------------------------------------------------------------------
// Broadcast (interfaces.IBroadcaster)
// -----------------------------------------------------------------------------

// Broadcast delivers message to every subscriber of stream. Best-effort:
// a client whose buffer is full is disconnected rather than allowed to
// block delivery to the rest.
func (s *Server) Broadcast(stream string, message interface{}) {
	s.mu.RLock()
	subs := s.streamSubs[stream]
	targets := make([]*Client, 0, len(subs))
	for client := range subs {
		targets = append(targets, client)
	}
	s.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- message:
		default:
			// Client too slow; prune it to keep fan-out moving
			s.Logger.Warning("Dropping slow client on stream '%s'", stream)
			go func(c *Client) { s.unregister <- c }(client)
		}
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the fan-out
		send:    make(chan interface{}, 256),
		done:    make(chan struct{}),
		streams: make(map[string]struct{}),
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Command Handling (one handler per message type)
// -----------------------------------------------------------------------------

var availableTypes = []string{
	models.CmdStartStream,
	models.CmdStopStream,
	models.CmdGetCurrentBlock,
	models.CmdGetAPIStats,
}

// -----------------------------------------------------------------------------

func (s *Server) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.reply(client, models.MProtocolError{
			Type:    "error",
			Message: "unparseable message: expected a JSON object with a 'type' field",
		})
		return
	}

	switch cmd.Type {
	case models.CmdStartStream:
		s.handleStartStream(client, cmd.Stream)
	case models.CmdStopStream:
		s.handleStopStream(client, cmd.Stream)
	case models.CmdGetCurrentBlock:
		s.handleGetCurrentBlock(client)
	case models.CmdGetAPIStats:
		s.reply(client, s.controller.Stats())
	default:
		s.reply(client, models.MProtocolError{
			Type:           "error",
			Message:        "unknown message type '" + cmd.Type + "'",
			AvailableTypes: availableTypes,
		})
	}
}

// -----------------------------------------------------------------------------

func (s *Server) handleStartStream(client *Client, stream string) {
	s.mu.Lock()
	_, already := client.streams[stream]
	if !already {
		// Subscribe before activation: the refresh loop's first cycle may
		// broadcast before Activate returns, and the joining client must
		// already be in the fan-out set to receive that initial payload.
		client.streams[stream] = struct{}{}
		if s.streamSubs[stream] == nil {
			s.streamSubs[stream] = make(map[*Client]struct{})
		}
		s.streamSubs[stream][client] = struct{}{}
	}
	s.mu.Unlock()

	if already {
		// Already joined: re-ack without double-counting the subscriber
		interval := s.intervalFor(stream)
		s.reply(client, models.MStreamStarted{Type: "stream_started", Stream: stream, Interval: interval})
		return
	}

	interval, err := s.controller.Activate(stream)
	if err != nil {
		// Unknown stream: roll the subscription back, report to this
		// caller only
		s.mu.Lock()
		delete(client.streams, stream)
		if subs, ok := s.streamSubs[stream]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(s.streamSubs, stream)
			}
		}
		s.mu.Unlock()

		s.reply(client, models.MProtocolError{Type: "error", Message: err.Error()})
		return
	}

	s.reply(client, models.MStreamStarted{Type: "stream_started", Stream: stream, Interval: interval})
}

// -----------------------------------------------------------------------------

func (s *Server) handleStopStream(client *Client, stream string) {
	s.mu.Lock()
	_, joined := client.streams[stream]
	if joined {
		delete(client.streams, stream)
		if subs, ok := s.streamSubs[stream]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(s.streamSubs, stream)
			}
		}
	}
	s.mu.Unlock()

	// Stopping a stream that was never joined is a no-op, not an error
	var saved int64
	if joined {
		saved = s.controller.Deactivate(stream)
	}

	s.reply(client, models.MStreamStopped{Type: "stream_stopped", Stream: stream, RequestsSaved: saved})
}

// -----------------------------------------------------------------------------

func (s *Server) handleGetCurrentBlock(client *Client) {
	height, _ := s.controller.CurrentBlock()
	s.reply(client, models.MCurrentBlock{Type: "current_block", BlockNumber: height})
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (s *Server) intervalFor(stream string) int64 {
	for _, info := range s.controller.Catalogue() {
		if info.Name == stream {
			return info.IntervalMs
		}
	}
	return 0
}

// -----------------------------------------------------------------------------

// reply sends a direct response to one client without blocking the reader
func (s *Server) reply(client *Client, message interface{}) {
	select {
	case client.send <- message:
	default:
		// Buffer full; the broadcast path will prune this client shortly
	}
}

// -----------------------------------------------------------------------------

// SubscriberCount reports current connections (health surface)
func (s *Server) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
