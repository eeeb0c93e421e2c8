package statuscmder_test

import (
	"bytes"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	statuscmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/status"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

var _ = Describe("Status Command", func() {
	var configDir string

	BeforeEach(func() {
		var err error
		configDir, err = os.MkdirTemp("", "chatrelay-status-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, configDir)
	})

	newCmd := func() (*cobra.Command, *bytes.Buffer) {
		cmd := statuscmder.NewStatusCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{"--config-dir", configDir})
		return cmd, out
	}

	It("reports when no session is saved", func() {
		cmd, out := newCmd()
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No saved session"))
	})

	It("lists the saved messages", func() {
		state := &dotdir.SessionState{Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleUser, "Is the loft available?"),
			llm.NewTextMessage(llm.RoleAssistant, "Yes, from June."),
		}}
		Expect(dotdir.NewManager().SaveSession(state, configDir)).To(Succeed())

		cmd, out := newCmd()
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("2"))
		Expect(out.String()).To(ContainSubstring("Is the loft available?"))
		Expect(out.String()).To(ContainSubstring("Yes, from June."))
	})
})
