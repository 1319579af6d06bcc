package dir_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/loom/pkg/content/dir"
)

var _ = Describe("Dir Source", func() {
	var (
		ctx     context.Context
		tmpDir  string
		writeIn func(name, text string)
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		writeIn = func(name, text string) {
			Expect(os.WriteFile(filepath.Join(tmpDir, name), []byte(text), 0o644)).To(Succeed())
		}
	})

	It("rejects a missing directory", func() {
		_, err := dir.NewSource(filepath.Join(tmpDir, "nope"))
		Expect(err).To(HaveOccurred())
	})

	It("lists section files in name order", func() {
		writeIn("002-the-bridge.md", "bridge text")
		writeIn("001-arrival.md", "arrival text")
		writeIn("010-return.md", "return text")

		s, err := dir.NewSource(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		ids, err := s.SectionIDs(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"001-arrival.md", "002-the-bridge.md", "010-return.md"}))
	})

	It("ignores non-text files, dotfiles, and subdirectories", func() {
		writeIn("001-arrival.md", "arrival")
		writeIn("notes.json", "{}")
		writeIn(".hidden.md", "hidden")
		Expect(os.Mkdir(filepath.Join(tmpDir, "drafts"), 0o755)).To(Succeed())

		s, err := dir.NewSource(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		ids, err := s.SectionIDs(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"001-arrival.md"}))
	})

	It("scans id and text pairs in order", func() {
		writeIn("001-arrival.md", "they arrived at dusk")
		writeIn("002-the-bridge.md", "the bridge was out")

		s, err := dir.NewSource(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		sections, err := s.Scan(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sections).To(HaveLen(2))
		Expect(sections[0].ID).To(Equal("001-arrival.md"))
		Expect(sections[0].Text).To(Equal("they arrived at dusk"))
		Expect(sections[1].ID).To(Equal("002-the-bridge.md"))
	})

	It("returns no sections for an empty directory", func() {
		s, err := dir.NewSource(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		sections, err := s.Scan(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sections).To(BeEmpty())
	})
})
