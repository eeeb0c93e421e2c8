package chatcmder

import (
	"context"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/transcript"
)

type fakeStreamer struct {
	body string
}

func (f fakeStreamer) Stream(context.Context, string, []llm.Message) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func typeLine(m *tuiModel, text string) tea.Cmd {
	m.input.SetValue(text)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

var _ = Describe("tuiModel", func() {
	var (
		store *sessionStore
		m     *tuiModel
	)

	BeforeEach(func() {
		store = newStore()
		ctrl := transcript.NewController(fakeStreamer{body: helloStream}, transcript.Config{}, zap.NewNop())
		m = newTUIModel(context.Background(), ctrl, store, 80, 24)
	})

	It("submits input and saves the completed reply", func() {
		cmd := typeLine(m, "Hi there")
		Expect(cmd).NotTo(BeNil())
		Expect(m.input.Value()).To(BeEmpty())

		msg := cmd()
		Expect(msg).To(BeAssignableToTypeOf(submitDoneMsg{}))
		m.Update(msg)

		Expect(m.snap.Messages).To(HaveLen(2))
		Expect(m.snap.Messages[1].Content).To(Equal("Hello world!"))
		Expect(m.View()).To(ContainSubstring("Hi there"))
		Expect(savedMessages(store)).To(HaveLen(2))
	})

	It("renders streaming snapshots as they arrive", func() {
		m.Update(snapshotMsg{snap: transcript.Snapshot{
			Session: transcript.Session{
				Messages: []llm.Message{
					llm.NewTextMessage(llm.RoleUser, "Hi"),
					llm.NewTextMessage(llm.RoleAssistant, "Hel"),
				},
				Pending: true,
			},
			State:     transcript.StreamingAssistant,
			Streaming: true,
		}})

		Expect(m.View()).To(ContainSubstring("Hel"))
		Expect(m.View()).To(ContainSubstring("streaming"))
	})

	It("shows the busy notice when a submit is rejected", func() {
		m.Update(submitDoneMsg{err: transcript.ErrBusy})
		Expect(m.notice).To(ContainSubstring(transcript.ErrBusy.Error()))
	})

	It("shows the classified notice on failure", func() {
		m.Update(submitDoneMsg{err: &transcript.Failure{Kind: transcript.QuotaExhausted}})
		Expect(m.View()).To(ContainSubstring(transcript.NoticeQuotaExhausted))
	})

	It("handles slash commands locally", func() {
		Expect(typeLine(m, "/cancel")).To(BeNil())
		Expect(m.notice).To(Equal(noticeNothingToCancel))

		Expect(typeLine(m, "/reset")).To(BeNil())
		Expect(m.notice).To(Equal(noticeCleared))

		Expect(typeLine(m, "/nope")).To(BeNil())
		Expect(m.notice).To(Equal(noticeUnknownCommand))
	})

	It("quits on /exit and on Ctrl+C when idle", func() {
		Expect(typeLine(m, "/exit")()).To(Equal(tea.Quit()))

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		Expect(cmd()).To(Equal(tea.Quit()))
	})

	It("resizes the viewport", func() {
		m.Update(tea.WindowSizeMsg{Width: 120, Height: 50})
		Expect(m.content.Width).To(Equal(120))
		Expect(m.content.Height).To(Equal(50 - chromeHeight))
	})
})
