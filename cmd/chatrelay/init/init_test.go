package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/init"
	"github.com/papercomputeco/chatrelay/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "chatrelay-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	run := func() string {
		cmd := initcmder.NewInitCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{})
		Expect(cmd.Execute()).To(Succeed())
		return out.String()
	}

	It("creates .chatrelay with a default config.toml", func() {
		Expect(run()).To(ContainSubstring("Initialized"))

		data, err := os.ReadFile(filepath.Join(tmpDir, ".chatrelay", "config.toml"))
		Expect(err).NotTo(HaveOccurred())

		var cfg config.Config
		Expect(toml.Unmarshal(data, &cfg)).To(Succeed())
		Expect(cfg.Relay.Path).To(Equal(config.NewDefaultConfig().Relay.Path))
	})

	It("is idempotent", func() {
		run()
		Expect(run()).To(ContainSubstring("Already initialized"))
	})

	It("keeps an existing directory untouched", func() {
		dir := filepath.Join(tmpDir, ".chatrelay")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())

		run()

		_, err := os.Stat(filepath.Join(dir, "config.toml"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
