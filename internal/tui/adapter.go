package tui

import (
	"context"
	stderrors "errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/route"
)

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Adapter is the route.Navigator for the TUI. Calls never block: messages
// queue in order until a program is attached and drain to it from a pump
// goroutine.
type Adapter struct {
	mu     sync.Mutex
	queue  []tea.Msg
	wake   chan struct{}
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

var _ route.Navigator = (*Adapter)(nil)

// NewAdapter creates an adapter with nothing attached.
func NewAdapter() *Adapter {
	return &Adapter{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Navigate implements route.Navigator.
func (a *Adapter) Navigate(dest route.Destination, state route.State) {
	a.send(NavigateMsg{Destination: dest, State: state})
}

// ShowLoading implements route.Navigator.
func (a *Adapter) ShowLoading() {
	a.send(LoadingMsg{})
}

// ShowError implements route.Navigator.
func (a *Adapter) ShowError(err error) {
	a.send(ErrorMsg{Err: err})
}

func (a *Adapter) send(msg tea.Msg) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.queue = append(a.queue, msg)
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Attach starts delivering queued and future messages to s.
func (a *Adapter) Attach(s Sender) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-a.done:
				return
			case <-a.wake:
			}

			a.mu.Lock()
			batch := a.queue
			a.queue = nil
			a.mu.Unlock()

			for _, msg := range batch {
				s.Send(msg)
			}
		}
	}()

	// Deliver anything queued before attaching.
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Close stops delivery. Later navigator calls are dropped.
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	close(a.done)
	a.wg.Wait()
}

// Run shows the TUI until the user quits or ctx is cancelled. The adapter
// should already be wired to the route guard; anything it queued is shown
// once the program starts.
func Run(ctx context.Context, actions Actions, adapter *Adapter, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(NewModel(ctx, actions), opts...)

	adapter.Attach(p)
	defer adapter.Close()

	if _, err := p.Run(); err != nil {
		if stderrors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
