package backend_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/cmd/chatrelay/backend"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/credentials"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/nop"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/redis"
	"github.com/papercomputeco/chatrelay/pkg/identity"
	"github.com/papercomputeco/chatrelay/pkg/identity/remote"
	"github.com/papercomputeco/chatrelay/pkg/identity/static"
	"github.com/papercomputeco/chatrelay/pkg/identity/token"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/chatrelay/pkg/storage/sqlite"
)

type secrets map[string]string

func (s secrets) Resolve(name string) (string, error) {
	if v, ok := s["error"]; ok {
		return "", errors.New(v)
	}
	return s[name], nil
}

var _ = Describe("NewStorageDriver", func() {
	ctx := context.Background()

	It("falls back to the in-memory driver", func() {
		driver, err := backend.NewStorageDriver(ctx, config.StorageConfig{}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		Expect(driver.Close()).To(Succeed())
	})

	It("opens SQLite when a path is configured", func() {
		path := filepath.Join(GinkgoT().TempDir(), "nested", "chatrelay.db")

		driver, err := backend.NewStorageDriver(ctx, config.StorageConfig{SQLitePath: path}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(driver.Close)

		Expect(driver).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		Expect(path).To(BeAnExistingFile())
	})
})

var _ = Describe("NewVerifier", func() {
	It("builds a remote verifier by default", func() {
		v, err := backend.NewVerifier(config.IdentityConfig{URL: "http://identity.local"}, secrets{}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeAssignableToTypeOf(&remote.Verifier{}))
	})

	It("requires a URL for remote identity", func() {
		_, err := backend.NewVerifier(config.IdentityConfig{Provider: backend.IdentityRemote}, secrets{}, zap.NewNop())
		Expect(err).To(MatchError(ContainSubstring("identity.url")))
	})

	It("builds a token verifier from the session secret", func() {
		v, err := backend.NewVerifier(
			config.IdentityConfig{Provider: backend.IdentityToken},
			secrets{credentials.SessionSecret: "s3cret"},
			zap.NewNop(),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeAssignableToTypeOf(&token.Manager{}))

		issuer, err := token.New("s3cret")
		Expect(err).NotTo(HaveOccurred())
		tok, err := issuer.Issue("user-7", token.DefaultTTL)
		Expect(err).NotTo(HaveOccurred())

		id, err := v.Verify(context.Background(), tok)
		Expect(err).NotTo(HaveOccurred())
		Expect(id.Subject).To(Equal("user-7"))
	})

	It("fails token identity without a secret", func() {
		_, err := backend.NewVerifier(config.IdentityConfig{Provider: backend.IdentityToken}, secrets{}, zap.NewNop())
		Expect(err).To(MatchError(token.ErrEmptySecret))
	})

	It("surfaces secret lookup failures", func() {
		_, err := backend.NewVerifier(config.IdentityConfig{Provider: backend.IdentityToken}, secrets{"error": "unreadable"}, zap.NewNop())
		Expect(err).To(MatchError(ContainSubstring("unreadable")))
	})

	It("builds a static verifier from the token list", func() {
		v, err := backend.NewVerifier(
			config.IdentityConfig{Provider: backend.IdentityStatic, StaticTokens: "dev-token=dev-user"},
			secrets{},
			zap.NewNop(),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeAssignableToTypeOf(&static.Verifier{}))

		id, err := v.Verify(context.Background(), "dev-token")
		Expect(err).NotTo(HaveOccurred())
		Expect(id.Subject).To(Equal("dev-user"))

		_, err = v.Verify(context.Background(), "other")
		Expect(errors.Is(err, identity.ErrInvalidCredential)).To(BeTrue())
	})

	It("requires at least one static token", func() {
		_, err := backend.NewVerifier(config.IdentityConfig{Provider: backend.IdentityStatic}, secrets{}, zap.NewNop())
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown providers", func() {
		_, err := backend.NewVerifier(config.IdentityConfig{Provider: "ldap"}, secrets{}, zap.NewNop())
		Expect(err).To(MatchError(ContainSubstring(`unknown identity provider "ldap"`)))
	})
})

var _ = Describe("NewPublisher", func() {
	It("defaults to the nop publisher", func() {
		p, err := backend.NewPublisher(config.EventStreamConfig{Provider: backend.EventStreamNone}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("builds a redis publisher", func() {
		mr := miniredis.RunT(GinkgoT())

		p, err := backend.NewPublisher(config.EventStreamConfig{
			Provider: backend.EventStreamRedis,
			RedisURL: "redis://" + mr.Addr(),
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&redis.Publisher{}))
		Expect(p.Close()).To(Succeed())
	})

	It("requires brokers for kafka", func() {
		_, err := backend.NewPublisher(config.EventStreamConfig{Provider: backend.EventStreamKafka}, zap.NewNop())
		Expect(err).To(MatchError(ContainSubstring("at least one broker")))
	})

	It("rejects unknown providers", func() {
		_, err := backend.NewPublisher(config.EventStreamConfig{Provider: "nats"}, zap.NewNop())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ResolveSQLitePath", func() {
	var origCwd string

	BeforeEach(func() {
		var err error
		origCwd, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		GinkgoT().Setenv("HOME", GinkgoT().TempDir())
		GinkgoT().Setenv("XDG_DATA_HOME", "")
		Expect(os.Chdir(GinkgoT().TempDir())).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origCwd)).To(Succeed())
	})

	It("prefers the override", func() {
		path, err := backend.ResolveSQLitePath("/tmp/custom.db")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/custom.db"))
	})

	It("finds a database in the local .chatrelay directory", func() {
		Expect(os.MkdirAll(".chatrelay", 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(".chatrelay", "chatrelay.db"), nil, 0o600)).To(Succeed())

		path, err := backend.ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(".chatrelay", "chatrelay.db")))
	})

	It("returns ErrNoSQLiteDatabase when nothing exists", func() {
		_, err := backend.ResolveSQLitePath("")
		Expect(err).To(MatchError(backend.ErrNoSQLiteDatabase))
	})
})

var _ = Describe("RelayConfig", func() {
	It("copies the relay settings and the server-held key", func() {
		publisher := nop.NewPublisher()
		cfg := backend.RelayConfig(config.RelayConfig{
			Listen:       ":9090",
			Upstream:     "https://gateway.example",
			Model:        "google/gemini-2.5-flash",
			SystemPrompt: "You help people find listings.",
			Path:         "/functions/v1/chat",
			AllowOrigins: "https://app.example",
			Workers:      2,
		}, "upstream-secret", publisher)

		Expect(cfg.ListenAddr).To(Equal(":9090"))
		Expect(cfg.UpstreamURL).To(Equal("https://gateway.example"))
		Expect(cfg.UpstreamAPIKey).To(Equal("upstream-secret"))
		Expect(cfg.SystemPrompt).To(Equal("You help people find listings."))
		Expect(cfg.AllowOrigins).To(Equal("https://app.example"))
		Expect(cfg.Workers).To(Equal(uint(2)))
		Expect(cfg.Publisher).To(BeIdenticalTo(publisher))
	})
})
