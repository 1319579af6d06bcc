package narrative_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/loom/pkg/narrative"
)

var _ = Describe("State", func() {
	Describe("Decode", func() {
		It("returns a fresh state for empty input", func() {
			s, err := narrative.Decode(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Events).To(BeEmpty())
			Expect(s.Settings.TokenLimit).To(Equal(narrative.DefaultTokenLimit))
			Expect(s.Settings.AutoUpdate).To(BeTrue())
		})

		It("defaults missing top-level keys", func() {
			s, err := narrative.Decode([]byte(`{"events":[{"id":"a","text":"the door opened"}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Events).To(HaveLen(1))
			Expect(s.Characters).To(BeEmpty())
			Expect(s.CurrentSituation).To(BeEmpty())
			Expect(s.LastProcessedSectionID).To(BeEmpty())
			Expect(s.Settings.CompressionThreshold).To(Equal(narrative.DefaultCompressionThreshold))
		})

		It("rejects malformed JSON", func() {
			_, err := narrative.Decode([]byte(`{"events": [`))
			Expect(err).To(HaveOccurred())
		})

		It("clamps a persisted token limit into range", func() {
			s, err := narrative.Decode([]byte(`{"settings":{"token_limit":99999,"auto_update":true}}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Settings.TokenLimit).To(Equal(narrative.MaxTokenLimit))

			s, err = narrative.Decode([]byte(`{"settings":{"token_limit":10,"auto_update":true}}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Settings.TokenLimit).To(Equal(narrative.MinTokenLimit))
		})

		It("accepts the legacy object-keyed characters layout", func() {
			blob := `{"characters":{"Mira":{"state":"wounded","last_updated":"2025-01-02T00:00:00Z"},"Tomas":{"state":"missing","last_updated":"2025-01-01T00:00:00Z"}}}`
			s, err := narrative.Decode([]byte(blob))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Characters).To(HaveLen(2))
			// Legacy entries are ordered by last update.
			Expect(s.Characters[0].Name).To(Equal("Tomas"))
			Expect(s.Characters[1].Name).To(Equal("Mira"))
		})

		It("rebuilds the sequence counter from stored events", func() {
			blob := `{"events":[{"id":"a","seq":4,"text":"x"},{"id":"b","seq":7,"text":"y"}]}`
			s, err := narrative.Decode([]byte(blob))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.NextSeq).To(Equal(int64(8)))
		})
	})

	Describe("Encode", func() {
		It("round-trips through Decode", func() {
			s := narrative.NewState()
			s.AppendEvent("the bridge collapsed")
			s.UpsertCharacter("Mira", "stranded on the far bank", time.Now())
			s.CurrentSituation = "the party is split"
			s.LastProcessedSectionID = "ch-3"

			data, err := s.Encode()
			Expect(err).NotTo(HaveOccurred())

			loaded, err := narrative.Decode(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Events).To(HaveLen(1))
			Expect(loaded.Events[0].Text).To(Equal("the bridge collapsed"))
			Expect(loaded.Characters[0].Name).To(Equal("Mira"))
			Expect(loaded.CurrentSituation).To(Equal("the party is split"))
			Expect(loaded.LastProcessedSectionID).To(Equal("ch-3"))
		})

		It("serializes characters as an ordered array", func() {
			s := narrative.NewState()
			s.UpsertCharacter("Zed", "alive", time.Now())
			s.UpsertCharacter("Anna", "alive", time.Now())

			data, err := s.Encode()
			Expect(err).NotTo(HaveOccurred())

			var raw map[string]json.RawMessage
			Expect(json.Unmarshal(data, &raw)).To(Succeed())
			Expect(string(raw["characters"])).To(HavePrefix("["))
		})
	})

	Describe("AppendEvent", func() {
		It("assigns increasing sequence numbers and default importance", func() {
			s := narrative.NewState()
			e1 := s.AppendEvent("first")
			e2 := s.AppendEvent("second")

			Expect(e1.Seq).To(BeNumerically("<", e2.Seq))
			Expect(e1.Importance).To(Equal(3))
			Expect(e1.Compressed).To(BeFalse())
			Expect(e1.ID).NotTo(BeEmpty())
			Expect(e1.ID).NotTo(Equal(e2.ID))
		})
	})

	Describe("UpsertCharacter", func() {
		It("overwrites the state wholesale on later mentions", func() {
			s := narrative.NewState()
			s.UpsertCharacter("Mira", "healthy", time.Now())
			s.UpsertCharacter("Mira", "wounded", time.Now())

			Expect(s.Characters).To(HaveLen(1))
			c, ok := s.Character("Mira")
			Expect(ok).To(BeTrue())
			Expect(c.State).To(Equal("wounded"))
		})

		It("preserves first-mention order", func() {
			s := narrative.NewState()
			s.UpsertCharacter("Zed", "alive", time.Now())
			s.UpsertCharacter("Anna", "alive", time.Now())
			s.UpsertCharacter("Zed", "dead", time.Now())

			Expect(s.Characters[0].Name).To(Equal("Zed"))
			Expect(s.Characters[1].Name).To(Equal("Anna"))
		})
	})

	Describe("ClearDerived", func() {
		It("drops derived data but keeps settings", func() {
			s := narrative.NewState()
			s.Settings.TokenLimit = 1500
			s.Settings.TrackedKeywords = []string{"amulet"}
			s.AppendEvent("something happened")
			s.UpsertCharacter("Mira", "fine", time.Now())
			s.CurrentSituation = "calm"
			s.LastProcessedSectionID = "ch-9"

			s.ClearDerived()

			Expect(s.Events).To(BeEmpty())
			Expect(s.Characters).To(BeEmpty())
			Expect(s.CurrentSituation).To(BeEmpty())
			Expect(s.LastProcessedSectionID).To(BeEmpty())
			Expect(s.Settings.TokenLimit).To(Equal(1500))
			Expect(s.Settings.TrackedKeywords).To(ConsistOf("amulet"))
		})
	})
})
