package prefs_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rshanygen/anygen/pkg/prefs"
	"github.com/rshanygen/anygen/pkg/prefs/inmemory"
	"github.com/rshanygen/anygen/pkg/prefs/sqlite"
)

func describeBackend(name string, open func() prefs.Backend) {
	Describe(name, func() {
		var (
			ctx     context.Context
			backend prefs.Backend
		)

		BeforeEach(func() {
			ctx = context.Background()
			backend = open()
			DeferCleanup(backend.Close)
		})

		It("reports missing keys", func() {
			_, ok, err := backend.GetItem(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("stores and overwrites values", func() {
			Expect(backend.SetItem(ctx, "k", "1")).To(Succeed())
			Expect(backend.SetItem(ctx, "k", "2")).To(Succeed())

			v, ok, err := backend.GetItem(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("2"))
		})

		It("removes values and tolerates missing keys", func() {
			Expect(backend.SetItem(ctx, "k", "1")).To(Succeed())
			Expect(backend.RemoveItem(ctx, "k")).To(Succeed())
			Expect(backend.RemoveItem(ctx, "k")).To(Succeed())

			_, ok, err := backend.GetItem(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("lists keys in sorted order", func() {
			Expect(backend.SetItem(ctx, "b", "1")).To(Succeed())
			Expect(backend.SetItem(ctx, "a", "1")).To(Succeed())

			keys, err := backend.Keys(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(Equal([]string{"a", "b"}))
		})
	})
}

var _ = Describe("Backends", func() {
	describeBackend("inmemory", func() prefs.Backend {
		return inmemory.New()
	})

	describeBackend("sqlite", func() prefs.Backend {
		b, err := sqlite.New(":memory:")
		Expect(err).NotTo(HaveOccurred())
		return b
	})

	It("persists sqlite values across reopen", func() {
		ctx := context.Background()
		path := filepath.Join(GinkgoT().TempDir(), "prefs.db")

		b, err := sqlite.New(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.SetItem(ctx, "rshanygen_theme", `"dark"`)).To(Succeed())
		Expect(b.Close()).To(Succeed())

		b, err = sqlite.New(path)
		Expect(err).NotTo(HaveOccurred())
		defer b.Close()

		v, ok, err := b.GetItem(ctx, "rshanygen_theme")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(`"dark"`))
	})
})
