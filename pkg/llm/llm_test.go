package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/loom/pkg/llm"
	"github.com/papercomputeco/loom/pkg/logger"
)

var _ = Describe("NewCaller", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("rejects unknown providers", func() {
		_, err := llm.NewCaller(llm.Config{Provider: "parrot"}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	Describe("openai", func() {
		It("sends the prompt and returns the completion", func() {
			var gotBody map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/v1/chat/completions"))
				Expect(r.Header.Get("Authorization")).To(Equal("Bearer test-key"))
				Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())

				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"choices":[{"message":{"content":"{\"events\":[]}"}}]}`))
			}))
			defer server.Close()

			call, err := llm.NewCaller(llm.Config{
				Provider: "openai",
				Model:    "gpt-4o-mini",
				APIKey:   "test-key",
				Target:   server.URL,
			}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			out, err := call(ctx, llm.Request{Prompt: "extract facts", MaxTokens: 500, JSON: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(`{"events":[]}`))

			Expect(gotBody["model"]).To(Equal("gpt-4o-mini"))
			Expect(gotBody["max_tokens"]).To(BeNumerically("==", 500))
			format, ok := gotBody["response_format"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(format["type"]).To(Equal("json_object"))
		})

		It("surfaces quota errors with the provider message", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":{"message":"You exceeded your current quota."}}`))
			}))
			defer server.Close()

			call, err := llm.NewCaller(llm.Config{Provider: "openai", APIKey: "k", Target: server.URL}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			_, err = call(ctx, llm.Request{Prompt: "x"})
			Expect(err).To(HaveOccurred())
			Expect(llm.IsBudgetExceeded(err)).To(BeTrue())
		})
	})

	Describe("anthropic", func() {
		It("sends the prompt and returns the first content block", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/v1/messages"))
				Expect(r.Header.Get("x-api-key")).To(Equal("test-key"))

				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"content":[{"type":"text","text":"- a bullet"}]}`))
			}))
			defer server.Close()

			call, err := llm.NewCaller(llm.Config{
				Provider: "anthropic",
				APIKey:   "test-key",
				Target:   server.URL,
			}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			out, err := call(ctx, llm.Request{Prompt: "summarize"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("- a bullet"))
		})
	})

	Describe("ollama", func() {
		It("requests json format when asked", func() {
			var gotBody map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/chat"))
				Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())

				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"message":{"content":"{}"},"done":true}`))
			}))
			defer server.Close()

			call, err := llm.NewCaller(llm.Config{Provider: "ollama", Target: server.URL}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			_, err = call(ctx, llm.Request{Prompt: "x", JSON: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(gotBody["format"]).To(Equal("json"))
		})

		It("falls back to ollama when no key is available", func() {
			GinkgoT().Setenv("OPENAI_API_KEY", "")
			GinkgoT().Setenv("ANTHROPIC_API_KEY", "")

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/chat"))
				w.Write([]byte(`{"message":{"content":"ok"},"done":true}`))
			}))
			defer server.Close()

			call, err := llm.NewCaller(llm.Config{Provider: "openai", Target: server.URL}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			out, err := call(ctx, llm.Request{Prompt: "x"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("ok"))
		})
	})
})

var _ = Describe("IsBudgetExceeded", func() {
	It("matches known provider budget signals", func() {
		Expect(llm.IsBudgetExceeded(errors.New("openai error: You exceeded your current quota"))).To(BeTrue())
		Expect(llm.IsBudgetExceeded(errors.New("anthropic error: Your credit balance is too low"))).To(BeTrue())
		Expect(llm.IsBudgetExceeded(errors.New("insufficient_quota"))).To(BeTrue())
	})

	It("does not match ordinary failures", func() {
		Expect(llm.IsBudgetExceeded(nil)).To(BeFalse())
		Expect(llm.IsBudgetExceeded(errors.New("connection refused"))).To(BeFalse())
	})
})
