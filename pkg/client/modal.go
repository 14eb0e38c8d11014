// pkg/client/modal.go
package client

import "sync"

type ModalState int

const (
	ModalClosed ModalState = iota
	ModalOpen
)

func (s ModalState) String() string {
	if s == ModalOpen {
		return "open"
	}
	return "closed"
}

// UsageSnapshot is the counter state that caused a denial.
type UsageSnapshot struct {
	Current   int64 `json:"current"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

// LimitData is what the upgrade prompt shows.
type LimitData struct {
	LimitType    Action        `json:"limitType"`
	CurrentUsage UsageSnapshot `json:"currentUsage"`
}

// LimitModal is the blocking upgrade prompt. It opens on a denial and only
// closes when the user dismisses it or navigates away; it never times out.
type LimitModal struct {
	mu       sync.Mutex
	state    ModalState
	data     *LimitData
	onChange func(ModalState, *LimitData)
}

func NewLimitModal() *LimitModal {
	return &LimitModal{}
}

// OnChange registers a listener called after every transition.
func (m *LimitModal) OnChange(fn func(ModalState, *LimitData)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Open shows the prompt. Opening an open modal replaces its data.
func (m *LimitModal) Open(data LimitData) {
	m.transition(ModalOpen, &data)
}

// Dismiss closes the prompt.
func (m *LimitModal) Dismiss() {
	m.transition(ModalClosed, nil)
}

// NavigateAway closes the prompt when the user leaves, e.g. for the upgrade page.
func (m *LimitModal) NavigateAway() {
	m.transition(ModalClosed, nil)
}

func (m *LimitModal) transition(to ModalState, data *LimitData) {
	m.mu.Lock()
	if to == ModalClosed && m.state == ModalClosed {
		m.mu.Unlock()
		return
	}
	m.state = to
	m.data = data
	fn := m.onChange
	m.mu.Unlock()

	if fn != nil {
		fn(to, data)
	}
}

func (m *LimitModal) State() ModalState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *LimitModal) IsOpen() bool {
	return m.State() == ModalOpen
}

// Data returns a copy of what the open prompt shows, or nil when closed.
func (m *LimitModal) Data() *LimitData {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil
	}
	d := *m.data
	return &d
}
