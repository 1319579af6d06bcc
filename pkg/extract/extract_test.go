package extract_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/loom/pkg/extract"
	"github.com/papercomputeco/loom/pkg/logger"
	testutils "github.com/papercomputeco/loom/pkg/utils/test"
)

var _ = Describe("Extractor", func() {
	var (
		ctx    context.Context
		caller *testutils.MockCaller
	)

	BeforeEach(func() {
		ctx = context.Background()
		caller = &testutils.MockCaller{}
	})

	It("maps a clean response into typed facts", func() {
		caller.Responses = []string{`{
			"events": ["the tower fell", "the survivors fled east"],
			"characters": {"Mira": "leading the survivors"},
			"situation": "the group shelters in the ruins"
		}`}

		e := extract.New(caller.Call, logger.Nop())
		facts := e.Extract(ctx, "some story text that is long enough", nil)

		Expect(facts.Events).To(Equal([]string{"the tower fell", "the survivors fled east"}))
		Expect(facts.Characters).To(HaveKeyWithValue("Mira", "leading the survivors"))
		Expect(facts.Situation).To(Equal("the group shelters in the ruins"))
		Expect(facts.Empty()).To(BeFalse())
	})

	It("requests a JSON object with a bounded output", func() {
		caller.Responses = []string{`{}`}

		e := extract.New(caller.Call, logger.Nop())
		e.Extract(ctx, "text", nil)

		Expect(caller.Calls).To(HaveLen(1))
		req := caller.Calls[0]
		Expect(req.JSON).To(BeTrue())
		Expect(req.MaxTokens).To(BeNumerically(">", 0))
		Expect(req.Temperature).To(BeNumerically("<", 0.5))
	})

	It("keeps the tail when input exceeds the window", func() {
		caller.Responses = []string{`{}`}

		head := strings.Repeat("old ", 3000)
		text := head + "the newest sentence"

		e := extract.New(caller.Call, logger.Nop())
		e.Extract(ctx, text, nil)

		prompt := caller.Calls[0].Prompt
		Expect(prompt).To(ContainSubstring("the newest sentence"))
		Expect(len(prompt)).To(BeNumerically("<", len(text)))
	})

	It("includes tracked keywords as hints", func() {
		caller.Responses = []string{`{}`}

		e := extract.New(caller.Call, logger.Nop())
		e.Extract(ctx, "text", []string{"amulet", "the pact"})

		Expect(caller.Calls[0].Prompt).To(ContainSubstring("amulet, the pact"))
	})

	It("degrades to empty facts on call failure", func() {
		caller.Err = errors.New("connection refused")

		e := extract.New(caller.Call, logger.Nop())
		facts := e.Extract(ctx, "text", nil)

		Expect(facts.Empty()).To(BeTrue())
	})

	It("degrades to empty facts on a budget-exceeded failure", func() {
		caller.Err = errors.New("openai error: You exceeded your current quota")

		e := extract.New(caller.Call, logger.Nop())
		facts := e.Extract(ctx, "text", nil)

		Expect(facts.Empty()).To(BeTrue())
	})

	It("recovers facts from truncated output", func() {
		caller.Responses = []string{`{"events": ["the tower fell", "the gates`}

		e := extract.New(caller.Call, logger.Nop())
		facts := e.Extract(ctx, "text", nil)

		Expect(facts.Events).To(ContainElement("the tower fell"))
	})

	It("defaults malformed field types", func() {
		caller.Responses = []string{`{"events": "not an array", "characters": {"Mira": 42}, "situation": ["not a string"]}`}

		e := extract.New(caller.Call, logger.Nop())
		facts := e.Extract(ctx, "text", nil)

		Expect(facts.Events).To(BeEmpty())
		Expect(facts.Characters).To(BeEmpty())
		Expect(facts.Situation).To(BeEmpty())
	})

	It("degrades to empty facts when no JSON object is present", func() {
		caller.Responses = []string{"I could not find any facts, sorry."}

		e := extract.New(caller.Call, logger.Nop())
		facts := e.Extract(ctx, "text", nil)

		Expect(facts.Empty()).To(BeTrue())
	})
})
