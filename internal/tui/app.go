package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"beacon/pkg/client"
	"beacon/pkg/protocol"
)

// Inbox is the part of *client.Synchronizer the terminal client drives.
type Inbox interface {
	Snapshot() client.Snapshot
	FetchNotifications(ctx context.Context) error
	MarkAsRead(ctx context.Context, notificationID string) error
	MarkAllAsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, notificationID string) error
}

// SnapshotMsg carries a fresh inbox snapshot into the program.
type SnapshotMsg client.Snapshot

// actionDoneMsg reports the result of a key-triggered call.
type actionDoneMsg struct {
	action string
	err    error
}

const actionTimeout = 10 * time.Second

// App is the root Bubbletea model.
type App struct {
	inbox    Inbox
	snapshot client.Snapshot
	cursor   int
	status   string
	err      error
	width    int
	height   int
}

// NewApp creates the inbox view over inbox.
func NewApp(inbox Inbox) App {
	return App{inbox: inbox}
}

func (a App) Init() tea.Cmd {
	return a.refresh()
}

func (a App) refresh() tea.Cmd {
	return a.run("refresh", func(ctx context.Context) error {
		return a.inbox.FetchNotifications(ctx)
	})
}

func (a App) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case SnapshotMsg:
		a.snapshot = client.Snapshot(msg)
		a.clampCursor()

	case actionDoneMsg:
		a.err = msg.err
		if msg.err == nil {
			a.status = msg.action
		}
		if a.inbox != nil {
			a.snapshot = a.inbox.Snapshot()
			a.clampCursor()
		}

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "j", "down":
		if a.cursor < len(a.snapshot.Notifications)-1 {
			a.cursor++
		}
	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
		}
	case "f":
		return a, a.refresh()
	case "a":
		return a, a.run("marked all read", func(ctx context.Context) error {
			return a.inbox.MarkAllAsRead(ctx)
		})
	case "r":
		id, ok := a.selectedID()
		if !ok {
			return a, nil
		}

		return a, a.run("marked read", func(ctx context.Context) error {
			return a.inbox.MarkAsRead(ctx, id)
		})
	case "d":
		id, ok := a.selectedID()
		if !ok {
			return a, nil
		}

		return a, a.run("deleted", func(ctx context.Context) error {
			return a.inbox.DeleteNotification(ctx, id)
		})
	}

	return a, nil
}

func (a App) selectedID() (string, bool) {
	if a.cursor < 0 || a.cursor >= len(a.snapshot.Notifications) {
		return "", false
	}

	return a.snapshot.Notifications[a.cursor].ID, true
}

func (a *App) clampCursor() {
	if a.cursor >= len(a.snapshot.Notifications) {
		a.cursor = len(a.snapshot.Notifications) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a App) View() string {
	var b strings.Builder

	state := a.snapshot.State.String()
	fmt.Fprintf(&b, "%s  %s  %s\n",
		titleStyle.Render("BEACON"),
		stateStyle(state).Render("● "+state),
		mutedStyle.Render(fmt.Sprintf("%d unread", a.snapshot.UnreadCount)),
	)
	b.WriteString(headerDivider.Render(strings.Repeat("─", a.dividerWidth())))
	b.WriteString("\n")

	if len(a.snapshot.Notifications) == 0 {
		b.WriteString(mutedStyle.Render("  No notifications"))
		b.WriteString("\n")
	}

	for i, n := range a.visible() {
		prefix := "  "
		if i == a.cursor {
			prefix = cursorStyle.Render("> ")
		}

		style := readStyle
		marker := " "
		if !n.IsRead {
			style = unreadStyle
			marker = "•"
		}

		line := fmt.Sprintf("%s %s", marker, n.Title)
		if badge := categoryBadge(n.Category); badge != "" {
			line += " " + badge
		}
		b.WriteString(prefix + style.Render(line) + "\n")
	}

	b.WriteString("\n")
	switch {
	case a.err != nil:
		b.WriteString(errorStyle.Render("error: " + a.err.Error()))
	case a.status != "":
		b.WriteString(mutedStyle.Render(a.status))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("j/k move · r read · a read all · d delete · f refresh · q quit"))

	return b.String()
}

// visible returns the notifications that fit the window, always including the cursor.
func (a App) visible() []protocol.Notification {
	// Chrome: header(2) + status(2) + help(1)
	limit := a.height - 5
	if a.height == 0 || limit >= len(a.snapshot.Notifications) {
		return a.snapshot.Notifications
	}
	if limit < 1 {
		limit = 1
	}
	if a.cursor >= limit {
		limit = a.cursor + 1
	}

	return a.snapshot.Notifications[:limit]
}

func (a App) dividerWidth() int {
	if a.width <= 0 {
		return 40
	}

	return a.width
}
