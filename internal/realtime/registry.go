package realtime

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"beacon/pkg/protocol"

	"github.com/google/uuid"
)

// Stats is a point-in-time view of the registry.
type Stats struct {
	Connections  int   `json:"connectionCount"`
	Users        int   `json:"connectedUsers"`
	MessagesSent int64 `json:"messagesSent"`
	BytesSent    int64 `json:"bytesSent"`
}

// Registry maps each user to the connections they currently hold.
// A user with no connection has no entry.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID][]*Connection

	messagesSent atomic.Int64
	bytesSent    atomic.Int64

	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID][]*Connection),
		logger: logger,
	}
}

// Add appends conn to its user's connections.
func (r *Registry) Add(conn *Connection) {
	r.mu.Lock()
	r.conns[conn.UserID()] = append(r.conns[conn.UserID()], conn)
	count := len(r.conns[conn.UserID()])
	r.mu.Unlock()

	r.logger.Debug("[Registry] Connection added",
		slog.String("user_id", conn.UserID().String()),
		slog.String("connection_id", conn.ID()),
		slog.Int("user_connections", count),
	)
}

// Remove deletes conn and drops the user's entry once it is empty.
// It reports whether conn was registered.
func (r *Registry) Remove(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := conn.UserID()
	list := r.conns[userID]

	idx := slices.Index(list, conn)
	if idx < 0 {
		return false
	}

	list = slices.Delete(list, idx, idx+1)
	if len(list) == 0 {
		delete(r.conns, userID)
	} else {
		r.conns[userID] = list
	}

	return true
}

// SendToUser encodes env once and writes it to every open connection of userID.
// It returns how many connections accepted the frame; a user without connections is a no-op.
func (r *Registry) SendToUser(userID uuid.UUID, env protocol.Envelope) int {
	return r.send(userID, "", env)
}

// SendToUserExcept is SendToUser skipping the connection with id exceptID.
func (r *Registry) SendToUserExcept(userID uuid.UUID, exceptID string, env protocol.Envelope) int {
	return r.send(userID, exceptID, env)
}

func (r *Registry) send(userID uuid.UUID, exceptID string, env protocol.Envelope) int {
	targets := r.Connections(userID)
	if len(targets) == 0 {
		return 0
	}

	frame, err := protocol.Encode(env)
	if err != nil {
		r.logger.Error("[Registry] Failed to encode envelope",
			slog.String("type", string(env.Type)),
			slog.Any("error", err),
		)

		return 0
	}

	delivered := 0
	for _, conn := range targets {
		if conn.ID() == exceptID || !conn.IsOpen() {
			continue
		}

		if err := conn.Send(frame); err != nil {
			r.logger.Warn("[Registry] Write failed, terminating connection",
				slog.String("user_id", userID.String()),
				slog.String("connection_id", conn.ID()),
				slog.Any("error", err),
			)
			conn.Terminate()
			r.Remove(conn)

			continue
		}

		delivered++
		r.messagesSent.Add(1)
		r.bytesSent.Add(int64(len(frame)))
	}

	return delivered
}

// Connections returns a snapshot of userID's connections.
func (r *Registry) Connections(userID uuid.UUID) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.conns[userID])
}

// All returns a snapshot of every registered connection.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Connection, 0, len(r.conns))
	for _, list := range r.conns {
		all = append(all, list...)
	}

	return all
}

// ConnectionCount returns the total number of registered connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, list := range r.conns {
		total += len(list)
	}

	return total
}

// ConnectedUsers returns the users holding at least one connection.
func (r *Registry) ConnectedUsers() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(r.conns))
	for userID := range r.conns {
		users = append(users, userID)
	}

	return users
}

// Stats returns counters for operational endpoints.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	users := len(r.conns)
	conns := 0
	for _, list := range r.conns {
		conns += len(list)
	}
	r.mu.RUnlock()

	return Stats{
		Connections:  conns,
		Users:        users,
		MessagesSent: r.messagesSent.Load(),
		BytesSent:    r.bytesSent.Load(),
	}
}

// CloseAll closes every connection with code and empties the registry.
func (r *Registry) CloseAll(code int, reason string) int {
	r.mu.Lock()
	all := make([]*Connection, 0, len(r.conns))
	for _, list := range r.conns {
		all = append(all, list...)
	}
	r.conns = make(map[uuid.UUID][]*Connection)
	r.mu.Unlock()

	for _, conn := range all {
		conn.CloseWith(code, reason)
	}

	return len(all)
}
