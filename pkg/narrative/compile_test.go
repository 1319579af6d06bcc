package narrative_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/loom/pkg/narrative"
)

var _ = Describe("Compile", func() {
	It("returns an empty string when there is nothing to compile", func() {
		Expect(narrative.Compile(nil, nil, "")).To(BeEmpty())
	})

	It("renders only the timeline when only events exist", func() {
		events := []narrative.Event{narrative.NewEvent("the tower fell", 0)}
		out := narrative.Compile(events, nil, "")

		Expect(out).To(Equal("## Story Timeline\n- the tower fell"))
		Expect(out).NotTo(ContainSubstring("Current Situation"))
		Expect(out).NotTo(ContainSubstring("Key Characters"))
	})

	It("renders sections in fixed order joined by blank lines", func() {
		events := []narrative.Event{
			narrative.NewEvent("the tower fell", 0),
			narrative.NewEvent("the survivors fled east", 1),
		}
		chars := []narrative.CharacterState{
			{Name: "Mira", State: "leading the survivors", LastUpdated: time.Now()},
			{Name: "Tomas", State: "missing since the collapse", LastUpdated: time.Now()},
		}
		out := narrative.Compile(events, chars, "the group shelters in the ruins")

		blocks := strings.Split(out, "\n\n")
		Expect(blocks).To(HaveLen(3))
		Expect(blocks[0]).To(HavePrefix("## Story Timeline"))
		Expect(blocks[0]).To(ContainSubstring("- the tower fell"))
		Expect(blocks[0]).To(ContainSubstring("- the survivors fled east"))
		Expect(blocks[1]).To(Equal("## Current Situation\nthe group shelters in the ruins"))
		Expect(blocks[2]).To(HavePrefix("## Key Characters"))
		Expect(blocks[2]).To(ContainSubstring("Mira: leading the survivors"))
		Expect(blocks[2]).To(ContainSubstring("Tomas: missing since the collapse"))
	})

	It("omits empty sections without placeholders", func() {
		out := narrative.Compile(nil, []narrative.CharacterState{{Name: "Mira", State: "fine"}}, "")
		Expect(out).To(Equal("## Key Characters\nMira: fine"))
	})

	It("lists characters in insertion order", func() {
		chars := []narrative.CharacterState{
			{Name: "Zed", State: "first"},
			{Name: "Anna", State: "second"},
		}
		out := narrative.Compile(nil, chars, "")
		Expect(strings.Index(out, "Zed")).To(BeNumerically("<", strings.Index(out, "Anna")))
	})
})
