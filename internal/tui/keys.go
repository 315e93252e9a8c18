package tui

import (
	"github.com/Crys266/IoT-Project/internal/model"
	tea "github.com/charmbracelet/bubbletea"
)

var directionKeys = map[string]model.Direction{
	"up":    model.Forward,
	"w":     model.Forward,
	"down":  model.Backward,
	"s":     model.Backward,
	"left":  model.Left,
	"a":     model.Left,
	"right": model.Right,
	"d":     model.Right,
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if d, ok := directionKeys[key]; ok {
		return m.pressDirection(d)
	}

	switch key {
	case "q", "ctrl+c":
		if m.held != "" {
			m.release()
		}
		return m, tea.Quit

	case " ":
		if m.held == "" {
			return m, nil
		}
		return m, m.release()

	case "+", "=":
		m.send(model.InputEvent{Kind: model.InputSpeedStep, Speed: m.opts.SpeedStep})
		return m, nil

	case "-", "_":
		m.send(model.InputEvent{Kind: model.InputSpeedStep, Speed: -m.opts.SpeedStep})
		return m, nil

	case "n":
		m.send(model.InputEvent{Kind: model.InputToggleEffect, Effect: model.EffectNegative})
		return m, nil

	case "o":
		m.send(model.InputEvent{Kind: model.InputToggleEffect, Effect: model.EffectDetection})
		return m, nil

	case "c":
		m.send(model.InputEvent{Kind: model.InputSaveFrame})
		return m, nil

	case "g":
		if m.opts.Gallery == nil {
			return m, nil
		}
		return m, m.loadGallery()

	case "t":
		if m.opts.Gallery == nil {
			return m, nil
		}
		return m, m.testNotification()
	}
	return m, nil
}

// pressDirection starts or keeps a direction. Terminals only deliver key repeats,
// never key-up, so every press re-arms the release timer.
func (m Model) pressDirection(d model.Direction) (tea.Model, tea.Cmd) {
	if m.held != d {
		if !m.send(model.InputEvent{Kind: model.InputDirectionDown, Direction: d}) {
			return m, nil
		}
		m.held = d
	}
	m.releaseGen++
	return m, releaseAfter(m.opts.KeyRelease, m.releaseGen)
}

func (m Model) loadGallery() tea.Cmd {
	g, ctx := m.opts.Gallery, m.opts.Context
	return func() tea.Msg {
		_, err := g.LoadGallery(ctx)
		return actionDoneMsg{action: "gallery", err: err}
	}
}

func (m Model) testNotification() tea.Cmd {
	g, ctx := m.opts.Gallery, m.opts.Context
	return func() tea.Msg {
		return actionDoneMsg{action: "test-notify", err: g.TestNotification(ctx)}
	}
}
