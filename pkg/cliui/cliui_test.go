package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rshanygen/anygen/pkg/cliui"
)

var _ = Describe("Step", func() {
	It("returns the result of fn and prints the message", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "Creating session", func() error { return nil })
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("Creating session"))
		Expect(buf.String()).To(ContainSubstring("✓"))
	})

	It("propagates errors and marks the step failed", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")
		err := cliui.Step(&buf, "Uploading", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring("✗"))
	})
})

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below a second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses seconds with one decimal otherwise", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Errorf", func() {
	It("prefixes the message with the fail mark", func() {
		var buf bytes.Buffer
		cliui.Errorf(&buf, "HTTP error! status: %d", 500)
		Expect(buf.String()).To(HaveSuffix("HTTP error! status: 500\n"))
		Expect(buf.String()).To(ContainSubstring("✗"))
	})
})

var _ = Describe("KV", func() {
	It("prints key and value", func() {
		var buf bytes.Buffer
		cliui.KV(&buf, "title", "新会话")
		Expect(buf.String()).To(ContainSubstring("title:"))
		Expect(buf.String()).To(ContainSubstring("新会话"))
	})
})
