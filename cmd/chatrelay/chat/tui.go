package chatcmder

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/transcript"
)

const (
	defaultWidth   = 100
	defaultHeight  = 40
	inputCharLimit = 4000

	// input line plus status line plus separator
	chromeHeight     = 3
	minContentHeight = 5
)

type (
	snapshotMsg   struct{ snap transcript.Snapshot }
	submitDoneMsg struct{ err error }
)

// tuiModel is the bubbletea model of the full screen chat.
type tuiModel struct {
	ctx   context.Context
	ctrl  *transcript.Controller
	store *sessionStore

	input   textinput.Model
	content viewport.Model

	snap   transcript.Snapshot
	notice string

	// rendered caches glamour output for sealed assistant messages.
	rendered map[string]string

	width  int
	height int
}

func runTUI(ctx context.Context, client transcript.Streamer, cfg transcript.Config, store *sessionStore, width, height int, logger *zap.Logger) error {
	var program *tea.Program
	cfg.OnUpdate = func(snap transcript.Snapshot) {
		program.Send(snapshotMsg{snap: snap})
	}

	ctrl := transcript.NewController(client, cfg, logger)
	m := newTUIModel(ctx, ctrl, store, width, height)

	program = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	ctrl.Cancel()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func newTUIModel(ctx context.Context, ctrl *transcript.Controller, store *sessionStore, width, height int) *tuiModel {
	input := textinput.New()
	input.Placeholder = "Ask about a listing..."
	input.Focus()
	input.CharLimit = inputCharLimit
	input.Prompt = cliui.PromptStyle.Render("you> ")

	m := &tuiModel{
		ctx:      ctx,
		ctrl:     ctrl,
		store:    store,
		input:    input,
		content:  viewport.New(width, height),
		snap:     ctrl.Snapshot(),
		rendered: make(map[string]string),
	}
	m.resize(width, height)
	return m
}

func (m *tuiModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.ctrl.Cancel() {
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.enter()
		case tea.KeyPgUp:
			m.content.ViewUp()
			return m, nil
		case tea.KeyPgDown:
			m.content.ViewDown()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case snapshotMsg:
		m.snap = msg.snap
		if msg.snap.Notice != "" {
			m.notice = msg.snap.Notice
		}
		m.refresh()
		return m, nil

	case submitDoneMsg:
		m.finish(msg.err)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *tuiModel) View() string {
	status := cliui.DimStyle.Render(m.snap.State.String())
	if m.notice != "" {
		status += "  " + cliui.Notice(m.notice)
	}
	return m.content.View() + "\n" + status + "\n" + m.input.View()
}

// enter handles one line of input: a slash command or a message to submit.
func (m *tuiModel) enter() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()

	switch parseCommand(text) {
	case cmdExit:
		m.ctrl.Cancel()
		return tea.Quit
	case cmdCancel:
		if !m.ctrl.Cancel() {
			m.notice = noticeNothingToCancel
		}
		return nil
	case cmdReset:
		if err := m.ctrl.Reset(); err != nil {
			m.notice = err.Error()
			return nil
		}
		if err := m.store.clear(); err != nil {
			m.notice = err.Error()
			return nil
		}
		m.notice = noticeCleared
		return nil
	case cmdUnknown:
		m.notice = noticeUnknownCommand
		return nil
	}

	if text == "" {
		return nil
	}
	m.notice = ""

	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return submitDoneMsg{err: ctrl.Submit(ctx, text)}
	}
}

func (m *tuiModel) finish(err error) {
	var failure *transcript.Failure
	switch {
	case errors.Is(err, transcript.ErrBusy):
		m.notice = err.Error() + "; Ctrl+C to stop it"
		return
	case errors.Is(err, transcript.ErrEmptyInput):
		return
	case errors.As(err, &failure):
		m.notice = failure.Kind.Notice()
	case err != nil:
		m.notice = err.Error()
	}

	m.snap = m.ctrl.Snapshot()
	m.store.save(m.snap)
	m.refresh()
}

func (m *tuiModel) resize(width, height int) {
	m.width = width
	m.height = height

	m.content.Width = width
	m.content.Height = max(height-chromeHeight, minContentHeight)
	m.input.Width = max(width-8, 10)
	m.rendered = make(map[string]string)
	m.refresh()
}

func (m *tuiModel) refresh() {
	var b strings.Builder
	for i, msg := range m.snap.Messages {
		streaming := m.snap.Streaming && i == len(m.snap.Messages)-1
		b.WriteString(m.renderMessage(msg, streaming))
		b.WriteString("\n")
	}
	m.content.SetContent(b.String())
	m.content.GotoBottom()
}

func (m *tuiModel) renderMessage(msg llm.Message, streaming bool) string {
	if msg.Role == llm.RoleUser {
		return cliui.UserLabel + "\n" + msg.Content + "\n"
	}

	if streaming {
		return cliui.AssistantLabel + "\n" + msg.Content + "\n"
	}

	body, ok := m.rendered[msg.Content]
	if !ok {
		var err error
		body, err = cliui.RenderMarkdownWidth(msg.Content, m.width-4)
		if err != nil {
			body = msg.Content + "\n"
		}
		m.rendered[msg.Content] = body
	}
	return cliui.AssistantLabel + "\n" + body
}
