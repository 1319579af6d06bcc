package wiring_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/loom/cmd/loom/wiring"
	"github.com/papercomputeco/loom/pkg/config"
	"github.com/papercomputeco/loom/pkg/logger"
)

var _ = Describe("ConfigFromViper", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "loom-wiring-viper-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// A local empty .loom keeps resolution away from ~/.loom.
		err = os.MkdirAll(filepath.Join(tmpDir, ".loom"), 0o755)
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	It("maps every section out of viper", func() {
		v, err := config.InitViper("")
		Expect(err).NotTo(HaveOccurred())

		v.Set("storage.provider", "postgres")
		v.Set("storage.postgres_url", "postgres://loom@localhost/loom")
		v.Set("api.listen", ":9090")
		v.Set("llm.provider", "anthropic")
		v.Set("llm.model", "claude-haiku-4-5-20251001")
		v.Set("narrative.key", "campaign")
		v.Set("narrative.token_limit", 1500)
		v.Set("narrative.auto_update", false)
		v.Set("narrative.tracked_keywords", []string{"Mira", "Harbor District"})
		v.Set("content.dir", "./story")
		v.Set("events.provider", "kafka")
		v.Set("events.brokers", []string{"localhost:9092"})
		v.Set("memory.file", "memory.md")

		cfg := wiring.ConfigFromViper(v)
		Expect(cfg.Storage.Provider).To(Equal("postgres"))
		Expect(cfg.Storage.PostgresURL).To(Equal("postgres://loom@localhost/loom"))
		Expect(cfg.API.Listen).To(Equal(":9090"))
		Expect(cfg.LLM.Provider).To(Equal("anthropic"))
		Expect(cfg.LLM.Model).To(Equal("claude-haiku-4-5-20251001"))
		Expect(cfg.Narrative.Key).To(Equal("campaign"))
		Expect(cfg.Narrative.TokenLimit).To(Equal(1500))
		Expect(cfg.Narrative.AutoUpdate).To(BeFalse())
		Expect(cfg.Narrative.TrackedKeywords).To(Equal([]string{"Mira", "Harbor District"}))
		Expect(cfg.Content.Dir).To(Equal("./story"))
		Expect(cfg.Events.Provider).To(Equal("kafka"))
		Expect(cfg.Events.Brokers).To(Equal([]string{"localhost:9092"}))
		Expect(cfg.Memory.File).To(Equal("memory.md"))
	})

	It("carries defaults for unset keys", func() {
		v, err := config.InitViper("")
		Expect(err).NotTo(HaveOccurred())

		cfg := wiring.ConfigFromViper(v)
		Expect(cfg.Storage.Provider).To(Equal("sqlite"))
		Expect(cfg.Narrative.Key).To(Equal("default"))
		Expect(cfg.Narrative.TokenLimit).To(Equal(1000))
		Expect(cfg.Narrative.AutoUpdate).To(BeTrue())
		Expect(cfg.Events.Provider).To(Equal("none"))
	})
})

var _ = Describe("Path resolution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "loom-wiring-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		err = os.MkdirAll(filepath.Join(tmpDir, ".loom"), 0o755)
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	It("prefers the configured state path", func() {
		path, err := wiring.ResolveStatePath("/tmp/custom.db")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/custom.db"))
	})

	It("falls back to loom.db in the local .loom directory", func() {
		path, err := wiring.ResolveStatePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Base(path)).To(Equal("loom.db"))
		Expect(filepath.Base(filepath.Dir(path))).To(Equal(".loom"))
	})

	It("prefers the configured memory path", func() {
		path, err := wiring.ResolveMemoryPath("/tmp/memory.md")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/memory.md"))
	})

	It("falls back to memory.md in the local .loom directory", func() {
		path, err := wiring.ResolveMemoryPath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Base(path)).To(Equal("memory.md"))
		Expect(filepath.Base(filepath.Dir(path))).To(Equal(".loom"))
	})
})

var _ = Describe("NewStore", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("builds an in-memory store", func() {
		cfg := config.NewDefaultConfig()
		cfg.Storage.Provider = "memory"

		driver, err := wiring.NewStore(ctx, cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).NotTo(BeNil())
		Expect(driver.Close()).To(Succeed())
	})

	It("requires a URL for postgres", func() {
		cfg := config.NewDefaultConfig()
		cfg.Storage.Provider = "postgres"
		cfg.Storage.PostgresURL = ""

		_, err := wiring.NewStore(ctx, cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("postgres_url")))
	})

	It("rejects unknown providers", func() {
		cfg := config.NewDefaultConfig()
		cfg.Storage.Provider = "etcd"

		_, err := wiring.NewStore(ctx, cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported storage provider")))
	})
})

var _ = Describe("NewPublisher", func() {
	It("defaults to the nop publisher", func() {
		cfg := config.NewDefaultConfig()
		cfg.Events.Provider = ""

		pub, err := wiring.NewPublisher(cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(pub).NotTo(BeNil())
		Expect(pub.Close()).To(Succeed())
	})

	It("rejects unknown providers", func() {
		cfg := config.NewDefaultConfig()
		cfg.Events.Provider = "rabbitmq"

		_, err := wiring.NewPublisher(cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported events provider")))
	})
})

var _ = Describe("CycleFlagSet", func() {
	It("binds every flag to a valid config key", func() {
		fs := wiring.CycleFlagSet()
		for _, key := range wiring.CycleFlagKeys() {
			def, ok := fs[key]
			Expect(ok).To(BeTrue(), "missing flag definition for %s", key)
			Expect(config.IsValidConfigKey(def.ViperKey)).To(BeTrue(),
				"flag %s maps to unknown config key %s", def.Name, def.ViperKey)
		}
	})

	It("keeps flag names unique", func() {
		seen := map[string]bool{}
		for _, def := range wiring.CycleFlagSet() {
			Expect(seen[def.Name]).To(BeFalse(), "duplicate flag name %s", def.Name)
			seen[def.Name] = true
		}
	})
})
