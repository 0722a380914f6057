package model

import (
	"image"
)

// SelectionModel holds the pending region selection in video coordinates.
// Zero value means no active selection and is usable. No synchronization
// needed: updates occur on the UI thread.
type SelectionModel struct {
	rect image.Rectangle
}

func NewSelectionModel() *SelectionModel { return &SelectionModel{} }

// SetRect stores the selection. Degenerate rectangles clear it.
func (m *SelectionModel) SetRect(r image.Rectangle) {
	if m == nil {
		return
	}
	if r.Empty() || r.Dx() <= 0 || r.Dy() <= 0 {
		m.rect = image.Rectangle{}
		return
	}
	m.rect = r
}

// Rect returns the current selection (may be empty).
func (m *SelectionModel) Rect() image.Rectangle {
	if m == nil {
		return image.Rectangle{}
	}
	return m.rect
}

// Clear drops the selection.
func (m *SelectionModel) Clear() {
	if m == nil {
		return
	}
	m.rect = image.Rectangle{}
}
