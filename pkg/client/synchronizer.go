package client

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"beacon/pkg/protocol"

	"github.com/pkg/errors"
)

const (
	DefaultConnectDelay = time.Second
	DefaultPollInterval = 30 * time.Second
	DefaultPageSize     = 50
)

// SocketClient is the part of *Socket the Synchronizer drives.
type SocketClient interface {
	Connect(ctx context.Context) error
	State() State
	Send(t protocol.MessageType, data any) error
	On(t protocol.MessageType, fn Handler) (unsubscribe func())
}

// NotificationAPI is the part of *API the Synchronizer drives.
type NotificationAPI interface {
	List(ctx context.Context, opts ListOptions) ([]protocol.Notification, error)
	UnreadCount(ctx context.Context) (int64, error)
	MarkRead(ctx context.Context, notificationID string) error
	MarkAllRead(ctx context.Context) (int64, error)
	Delete(ctx context.Context, notificationID string) error
}

// SynchronizerOptions configures a Synchronizer. Zero values use the defaults.
type SynchronizerOptions struct {
	ConnectDelay time.Duration
	PollInterval time.Duration
	PageSize     int
	Scheduler    Scheduler
	Logger       *slog.Logger
}

// Snapshot is the local inbox at one point in time.
type Snapshot struct {
	Notifications []protocol.Notification
	UnreadCount   int64
	State         State
}

// Synchronizer keeps a local copy of the inbox current from pushed envelopes,
// falling back to polling the REST API while the socket is down.
type Synchronizer struct {
	socket       SocketClient
	api          NotificationAPI
	connectDelay time.Duration
	pollInterval time.Duration
	pageSize     int
	schedule     Scheduler
	logger       *slog.Logger

	mu            sync.RWMutex
	notifications []protocol.Notification
	unread        int64

	listenersMu    sync.RWMutex
	listeners      map[uint64]func(Snapshot)
	nextListenerID uint64

	unsubscribe   []func()
	cancelConnect func()
	cancelPoll    context.CancelFunc
	pollDone      chan struct{}
}

// NewSynchronizer creates a Synchronizer over socket and api.
func NewSynchronizer(socket SocketClient, api NotificationAPI, opts SynchronizerOptions) *Synchronizer {
	if opts.ConnectDelay <= 0 {
		opts.ConnectDelay = DefaultConnectDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Synchronizer{
		socket:       socket,
		api:          api,
		connectDelay: opts.ConnectDelay,
		pollInterval: opts.PollInterval,
		pageSize:     opts.PageSize,
		schedule:     opts.Scheduler,
		logger:       opts.Logger,
		listeners:    make(map[uint64]func(Snapshot)),
	}
}

// Start subscribes to the socket, fetches the inbox once, then connects after the
// connect delay and polls while the socket is not open. A failed initial fetch is
// returned but does not stop the synchronizer.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.unsubscribe = []func(){
		s.socket.On(protocol.TypeNotification, s.onNotification),
		s.socket.On(protocol.TypeMarkRead, s.onMarkRead),
		s.socket.On(protocol.TypeMarkAllRead, s.onMarkAllRead),
		s.socket.On(protocol.TypeDelete, s.onDelete),
		s.socket.On(protocol.TypeUnreadCount, s.onUnreadCount),
		s.socket.On(protocol.TypeConnected, func(Event) { s.notify() }),
		s.socket.On(EventDisconnected, func(Event) { s.notify() }),
	}

	fetchErr := s.FetchNotifications(ctx)

	s.cancelConnect = s.schedule(s.connectDelay, func() {
		if err := s.socket.Connect(ctx); err != nil {
			s.logger.Warn("[Sync] Connect failed", slog.Any("error", err))
		}
	})

	pollCtx, cancel := context.WithCancel(ctx)
	s.cancelPoll = cancel
	s.pollDone = make(chan struct{})
	go s.poll(pollCtx, s.pollDone)

	return fetchErr
}

// Close stops polling and detaches from the socket. The socket itself stays as it is.
func (s *Synchronizer) Close() {
	if s.cancelConnect != nil {
		s.cancelConnect()
	}
	if s.cancelPoll != nil {
		s.cancelPoll()
		<-s.pollDone
	}
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil
}

func (s *Synchronizer) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.socket.State() == StateOpen {
				continue
			}
			if err := s.FetchNotifications(ctx); err != nil {
				s.logger.Warn("[Sync] Poll failed", slog.Any("error", err))
			}
		}
	}
}

// FetchNotifications replaces the local inbox with the server's.
func (s *Synchronizer) FetchNotifications(ctx context.Context) error {
	notifications, err := s.api.List(ctx, ListOptions{Limit: s.pageSize})
	if err != nil {
		return errors.Wrap(err, "fetch notifications")
	}

	unread, err := s.api.UnreadCount(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch unread count")
	}

	s.mu.Lock()
	s.notifications = notifications
	s.unread = unread
	s.mu.Unlock()

	s.notify()

	return nil
}

// Notifications returns a copy of the local inbox, newest first.
func (s *Synchronizer) Notifications() []protocol.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.notifications)
}

// UnreadCount returns the local unread count.
func (s *Synchronizer) UnreadCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.unread
}

// Snapshot returns the inbox together with the socket state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Notifications: slices.Clone(s.notifications),
		UnreadCount:   s.unread,
		State:         s.socket.State(),
	}
}

// OnChange calls fn with a fresh snapshot after every local change.
func (s *Synchronizer) OnChange(fn func(Snapshot)) (unsubscribe func()) {
	s.listenersMu.Lock()
	s.nextListenerID++
	id := s.nextListenerID
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *Synchronizer) notify() {
	snapshot := s.Snapshot()

	s.listenersMu.RLock()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// MarkAsRead flips the notification locally, then tells the server over the socket,
// or over REST when the socket is not open.
func (s *Synchronizer) MarkAsRead(ctx context.Context, notificationID string) error {
	if s.markRead(notificationID) {
		s.notify()
	}

	if s.sendControl(protocol.TypeMarkRead, protocol.NotificationRef{NotificationID: notificationID}) {
		return nil
	}

	return s.api.MarkRead(ctx, notificationID)
}

// MarkAllAsRead flips every notification locally, then tells the server.
func (s *Synchronizer) MarkAllAsRead(ctx context.Context) error {
	s.markAllRead()
	s.notify()

	if s.sendControl(protocol.TypeMarkAllRead, nil) {
		return nil
	}

	_, err := s.api.MarkAllRead(ctx)

	return err
}

// DeleteNotification removes the notification locally, then tells the server.
func (s *Synchronizer) DeleteNotification(ctx context.Context, notificationID string) error {
	if s.remove(notificationID) {
		s.notify()
	}

	if s.sendControl(protocol.TypeDelete, protocol.NotificationRef{NotificationID: notificationID}) {
		return nil
	}

	return s.api.Delete(ctx, notificationID)
}

// sendControl reports whether the envelope went out over an open socket.
func (s *Synchronizer) sendControl(t protocol.MessageType, data any) bool {
	if s.socket.State() != StateOpen {
		return false
	}

	if err := s.socket.Send(t, data); err != nil {
		s.logger.Warn("[Sync] Socket send failed, using REST", slog.String("type", string(t)), slog.Any("error", err))

		return false
	}

	return true
}

func (s *Synchronizer) onNotification(ev Event) {
	var n protocol.Notification
	if err := (protocol.Envelope{Type: ev.Type, Data: ev.Data}).DecodeData(&n); err != nil || n.ID == "" {
		s.logger.Warn("[Sync] Ignoring malformed notification", slog.Any("error", err))

		return
	}

	s.mu.Lock()
	if slices.ContainsFunc(s.notifications, func(existing protocol.Notification) bool { return existing.ID == n.ID }) {
		s.mu.Unlock()

		return
	}
	s.notifications = slices.Insert(s.notifications, 0, n)
	if !n.IsRead {
		s.unread++
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Synchronizer) onMarkRead(ev Event) {
	var ref protocol.NotificationRef
	if err := (protocol.Envelope{Type: ev.Type, Data: ev.Data}).DecodeData(&ref); err != nil {
		return
	}

	if s.markRead(ref.NotificationID) {
		s.notify()
	}
}

func (s *Synchronizer) onMarkAllRead(Event) {
	s.markAllRead()
	s.notify()
}

func (s *Synchronizer) onDelete(ev Event) {
	var ref protocol.NotificationRef
	if err := (protocol.Envelope{Type: ev.Type, Data: ev.Data}).DecodeData(&ref); err != nil {
		return
	}

	if s.remove(ref.NotificationID) {
		s.notify()
	}
}

func (s *Synchronizer) onUnreadCount(ev Event) {
	var count protocol.UnreadCount
	if err := (protocol.Envelope{Type: ev.Type, Data: ev.Data}).DecodeData(&count); err != nil {
		return
	}

	s.mu.Lock()
	s.unread = count.Count
	s.mu.Unlock()

	s.notify()
}

func (s *Synchronizer) markRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 || s.notifications[i].IsRead {
		return false
	}

	s.notifications[i].IsRead = true
	if s.unread > 0 {
		s.unread--
	}

	return true
}

func (s *Synchronizer) markAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		s.notifications[i].IsRead = true
	}
	s.unread = 0
}

func (s *Synchronizer) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}

	if !s.notifications[i].IsRead && s.unread > 0 {
		s.unread--
	}
	s.notifications = slices.Delete(s.notifications, i, i+1)

	return true
}

// indexOf must be called with mu held.
func (s *Synchronizer) indexOf(id string) int {
	return slices.IndexFunc(s.notifications, func(n protocol.Notification) bool { return n.ID == id })
}
