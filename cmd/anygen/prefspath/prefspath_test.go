package prefspath_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rshanygen/anygen/cmd/anygen/prefspath"
)

var _ = Describe("ResolvePrefsPath", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		GinkgoT().Setenv("ANYGEN_PREFS", "")
	})

	It("prefers the explicit override", func() {
		GinkgoT().Setenv("ANYGEN_PREFS", "/from/env.db")

		path, err := prefspath.ResolvePrefsPath(" /explicit.db ", tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/explicit.db"))
	})

	It("falls back to the environment", func() {
		GinkgoT().Setenv("ANYGEN_PREFS", "/from/env.db")

		path, err := prefspath.ResolvePrefsPath("", tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/from/env.db"))
	})

	It("defaults to the anygen directory", func() {
		dir := filepath.Join(tmpDir, "custom")

		path, err := prefspath.ResolvePrefsPath("", dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(dir, prefspath.FileName)))

		info, err := os.Stat(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})
})
