package track

import "sync"

// Action is an undo/redo pair. A compound action covers a whole batch of
// model mutations so the user sees one operation.
type Action struct {
	Label string
	Undo  func()
	Redo  func()
}

// UndoManager keeps the applied-action history. Push records an action whose
// effect has already happened; Undo/Redo walk the stacks. The session
// goroutine pushes commit batches while the UI buttons undo, so the stacks
// are guarded; each action's callback runs outside the lock because it
// mutates the model through the model's own locks.
type UndoManager struct {
	mu   sync.Mutex
	undo []Action
	redo []Action
}

func NewUndoManager() *UndoManager { return &UndoManager{} }

// Push records an already-applied action and clears the redo history.
func (m *UndoManager) Push(a Action) {
	m.mu.Lock()
	m.undo = append(m.undo, a)
	m.redo = nil
	m.mu.Unlock()
}

func (m *UndoManager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

func (m *UndoManager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Undo reverts the most recent action. Returns false when there is none.
func (m *UndoManager) Undo() bool {
	m.mu.Lock()
	if len(m.undo) == 0 {
		m.mu.Unlock()
		return false
	}
	a := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, a)
	m.mu.Unlock()
	if a.Undo != nil {
		a.Undo()
	}
	return true
}

// Redo re-applies the most recently undone action.
func (m *UndoManager) Redo() bool {
	m.mu.Lock()
	if len(m.redo) == 0 {
		m.mu.Unlock()
		return false
	}
	a := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, a)
	m.mu.Unlock()
	if a.Redo != nil {
		a.Redo()
	}
	return true
}
