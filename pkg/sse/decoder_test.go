package sse_test

import (
	"bytes"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rshanygen/anygen/pkg/sse"
)

// chunkReader returns one chunk per Read call, then err (io.EOF by default).
type chunkReader struct {
	chunks []string
	err    error
	reads  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	r.reads++
	c := r.chunks[0]
	n := copy(p, c)
	if n < len(c) {
		r.chunks[0] = c[n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

// recorder captures every handler invocation in order.
type recorder struct {
	calls []string
}

func (r *recorder) handlers() sse.Handlers {
	return sse.Handlers{
		OnThinking: func(c string) { r.calls = append(r.calls, "thinking:"+c) },
		OnChunk:    func(c string) { r.calls = append(r.calls, "chunk:"+c) },
		OnDone:     func() { r.calls = append(r.calls, "done") },
		OnError:    func(err error) { r.calls = append(r.calls, "error:"+err.Error()) },
	}
}

func dispatch(chunks ...string) []string {
	rec := &recorder{}
	_ = sse.NewDecoder(&chunkReader{chunks: chunks}).Dispatch(rec.handlers())
	return rec.calls
}

// splitAt cuts s at the given byte offsets.
func splitAt(s string, offsets ...int) []string {
	var out []string
	prev := 0
	for _, o := range offsets {
		out = append(out, s[prev:o])
		prev = o
	}
	return append(out, s[prev:])
}

var _ = Describe("Decoder", func() {
	Describe("Dispatch", func() {
		It("dispatches events in arrival order", func() {
			stream := "data: {\"type\":\"thinking\",\"content\":\"正在分析...\"}\n\n" +
				"data: {\"type\":\"chunk\",\"content\":\"A\"}\n\n" +
				"data: {\"type\":\"chunk\",\"content\":\"B\"}\n\n" +
				"data: {\"type\":\"done\"}\n\n"

			Expect(dispatch(stream)).To(Equal([]string{
				"thinking:正在分析...",
				"chunk:A",
				"chunk:B",
				"done",
			}))
		})

		It("produces identical dispatches for every single split offset", func() {
			stream := "data: {\"type\":\"thinking\",\"content\":\"搜索中\"}\n" +
				": keep-alive\n\n" +
				"data: {\"type\":\"chunk\",\"content\":\"héllo\"}\n" +
				"data: not-json\n" +
				"data: {\"type\":\"chunk\",\"content\":\" wörld\"}\n" +
				"data: [DONE]\n"
			want := dispatch(stream)
			Expect(want).To(Equal([]string{"thinking:搜索中", "chunk:héllo", "chunk: wörld", "done"}))

			for i := 0; i <= len(stream); i++ {
				Expect(dispatch(splitAt(stream, i)...)).To(Equal(want), "split at %d", i)
			}
		})

		It("produces identical dispatches for byte-at-a-time delivery", func() {
			stream := "data: {\"type\":\"chunk\",\"content\":\"数据\"}\ndata: {\"type\":\"done\"}\n"
			var chunks []string
			for i := range len(stream) {
				chunks = append(chunks, stream[i:i+1])
			}

			Expect(dispatch(chunks...)).To(Equal([]string{"chunk:数据", "done"}))
		})

		It("tolerates empty chunks", func() {
			Expect(dispatch("", "data: {\"type\":\"chunk\",", "", "\"content\":\"x\"}\n", "")).
				To(Equal([]string{"chunk:x", "done"}))
		})

		It("stops at the [DONE] sentinel and ignores later bytes", func() {
			calls := dispatch(
				"data: {\"type\":\"chunk\",\"content\":\"hi\"}\ndata: [DONE]\ndata: {\"type\":\"chunk\",\"content\":\"late\"}\n",
				"data: {\"type\":\"chunk\",\"content\":\"later\"}\n",
			)
			Expect(calls).To(Equal([]string{"chunk:hi", "done"}))
		})

		It("does not read past the [DONE] sentinel", func() {
			src := &chunkReader{chunks: []string{"data: [DONE]\n", "data: {\"type\":\"chunk\",\"content\":\"x\"}\n"}}
			rec := &recorder{}
			Expect(sse.NewDecoder(src).Dispatch(rec.handlers())).To(Succeed())

			Expect(rec.calls).To(Equal([]string{"done"}))
			Expect(src.reads).To(Equal(1))
		})

		It("skips malformed frames without aborting the run", func() {
			Expect(dispatch("data: not-json\ndata: {\"type\":\"chunk\",\"content\":\"ok\"}\n")).
				To(Equal([]string{"chunk:ok", "done"}))
		})

		It("ignores unknown event types", func() {
			Expect(dispatch("data: {\"type\":\"mystery\"}\ndata: {\"type\":\"done\"}\n")).
				To(Equal([]string{"done"}))
		})

		It("treats valid non-object JSON as unrecognized", func() {
			Expect(dispatch("data: 42\ndata: [1,2]\ndata: {\"type\":\"chunk\",\"content\":\"ok\"}\n")).
				To(Equal([]string{"chunk:ok", "done"}))
		})

		It("dispatches by type when other fields are mistyped", func() {
			Expect(dispatch("data: {\"type\":\"done\",\"content\":0}\ndata: {\"type\":\"chunk\",\"content\":\"late\"}\n")).
				To(Equal([]string{"done"}))
			Expect(dispatch("data: {\"type\":\"chunk\",\"content\":\"hi\",\"message\":5}\n")).
				To(Equal([]string{"chunk:hi", "done"}))
		})

		It("forwards error frames whose message is not a string", func() {
			Expect(dispatch("data: {\"type\":\"error\",\"message\":{\"detail\":\"boom\"}}\ndata: {\"type\":\"chunk\",\"content\":\"x\"}\n")).
				To(Equal([]string{`error:{"detail":"boom"}`}))
		})

		It("treats a non-string type as unrecognized", func() {
			Expect(dispatch("data: {\"type\":7,\"content\":\"x\"}\ndata: [DONE]\n")).
				To(Equal([]string{"done"}))
		})

		It("ignores lines without the data prefix", func() {
			stream := ": comment\nevent: message\nid: 7\ndata:no-space\n\ndata: {\"type\":\"chunk\",\"content\":\"a\"}\n"
			Expect(dispatch(stream)).To(Equal([]string{"chunk:a", "done"}))
		})

		It("trims whitespace and carriage returns around the payload", func() {
			Expect(dispatch("data:   {\"type\":\"chunk\",\"content\":\"a\"}  \r\ndata: [DONE]\r\n")).
				To(Equal([]string{"chunk:a", "done"}))
		})

		It("forwards backend error events and stops", func() {
			rec := &recorder{}
			err := sse.NewDecoder(&chunkReader{chunks: []string{
				"data: {\"type\":\"chunk\",\"content\":\"part\"}\n",
				"data: {\"type\":\"error\",\"message\":\"Cannot connect to Orchestrator\"}\n",
				"data: {\"type\":\"chunk\",\"content\":\"after\"}\ndata: [DONE]\n",
			}}).Dispatch(rec.handlers())

			var streamErr *sse.StreamError
			Expect(errors.As(err, &streamErr)).To(BeTrue())
			Expect(streamErr.Message).To(Equal("Cannot connect to Orchestrator"))
			Expect(rec.calls).To(Equal([]string{"chunk:part", "error:Cannot connect to Orchestrator"}))
		})

		It("invokes no callback after a done frame", func() {
			Expect(dispatch("data: {\"type\":\"done\"}\ndata: {\"type\":\"chunk\",\"content\":\"x\"}\ndata: {\"type\":\"error\",\"message\":\"boom\"}\n")).
				To(Equal([]string{"done"}))
		})

		It("falls back to done once at natural end of stream", func() {
			Expect(dispatch("data: {\"type\":\"chunk\",\"content\":\"a\"}\n")).
				To(Equal([]string{"chunk:a", "done"}))
		})

		It("falls back to done for an empty stream", func() {
			Expect(dispatch()).To(Equal([]string{"done"}))
		})

		It("discards an unterminated trailing line at end of stream", func() {
			Expect(dispatch("data: {\"type\":\"chunk\",\"content\":\"a\"}\ndata: {\"type\":\"chunk\",\"content\":\"b\"}")).
				To(Equal([]string{"chunk:a", "done"}))
		})

		It("reports read failures as network errors", func() {
			rec := &recorder{}
			src := &chunkReader{
				chunks: []string{"data: {\"type\":\"chunk\",\"content\":\"a\"}\n"},
				err:    errors.New("connection reset by peer"),
			}
			err := sse.NewDecoder(src).Dispatch(rec.handlers())

			var netErr *sse.NetworkError
			Expect(errors.As(err, &netErr)).To(BeTrue())
			Expect(rec.calls).To(Equal([]string{"chunk:a", "error:connection reset by peer"}))
		})

		It("uses a fallback message for read failures without one", func() {
			rec := &recorder{}
			src := &chunkReader{err: errors.New("")}
			_ = sse.NewDecoder(src).Dispatch(rec.handlers())

			Expect(rec.calls).To(Equal([]string{"error:" + sse.NetworkFallbackMessage}))
		})

		It("never merges adjacent chunk events", func() {
			var got []string
			var text strings.Builder
			_ = sse.NewDecoder(&chunkReader{chunks: []string{
				"data: {\"type\":\"chunk\",\"content\":\"A\"}\ndata: {\"type\":\"chunk\",\"content\":\"B\"}\ndata: {\"type\":\"chunk\",\"content\":\"C\"}\n",
			}}).Dispatch(sse.Handlers{
				OnChunk: func(c string) {
					got = append(got, c)
					text.WriteString(c)
				},
			})

			Expect(got).To(Equal([]string{"A", "B", "C"}))
			Expect(text.String()).To(Equal("ABC"))
		})

		It("accepts zero-value handlers", func() {
			d := sse.NewDecoder(&chunkReader{chunks: []string{"data: {\"type\":\"chunk\",\"content\":\"a\"}\n"}})
			Expect(func() { _ = d.Dispatch(sse.Handlers{}) }).NotTo(Panic())
		})
	})

	Describe("Next", func() {
		It("returns nil, nil after the run has ended", func() {
			d := sse.NewDecoder(&chunkReader{chunks: []string{"data: [DONE]\n"}})

			ev, err := d.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Type).To(Equal(sse.EventDone))
			Expect(ev.Fallback).To(BeFalse())
			Expect(sse.Terminated(d)).To(BeTrue())

			ev, err = d.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("marks the synthesized done event as a fallback", func() {
			d := sse.NewDecoder(strings.NewReader(""))

			ev, err := d.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Type).To(Equal(sse.EventDone))
			Expect(ev.Fallback).To(BeTrue())
		})

		It("works with small read sizes", func() {
			d := sse.NewDecoder(
				strings.NewReader("data: {\"type\":\"chunk\",\"content\":\"long enough\"}\n"),
				sse.WithReadSize(3),
			)

			ev, err := d.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Content).To(Equal("long enough"))
		})
	})

	Describe("All", func() {
		It("yields the same sequence as Dispatch", func() {
			d := sse.NewDecoder(strings.NewReader(
				"data: {\"type\":\"thinking\",\"content\":\"t\"}\ndata: {\"type\":\"chunk\",\"content\":\"c\"}\n",
			))

			var types []sse.EventType
			for ev, err := range d.All() {
				Expect(err).NotTo(HaveOccurred())
				types = append(types, ev.Type)
			}

			Expect(types).To(Equal([]sse.EventType{sse.EventThinking, sse.EventChunk, sse.EventDone}))
		})

		It("ends with the error of a failed run", func() {
			d := sse.NewDecoder(strings.NewReader("data: {\"type\":\"error\",\"message\":\"boom\"}\n"))

			var last error
			for _, err := range d.All() {
				last = err
			}

			Expect(last).To(MatchError("boom"))
		})

		It("can stop early", func() {
			d := sse.NewDecoder(strings.NewReader(
				"data: {\"type\":\"chunk\",\"content\":\"a\"}\ndata: {\"type\":\"chunk\",\"content\":\"b\"}\n",
			))

			count := 0
			for range d.All() {
				count++
				break
			}

			Expect(count).To(Equal(1))
		})
	})

	Describe("WithTee", func() {
		It("forwards every byte read verbatim", func() {
			input := ": ping\ndata: {\"type\":\"chunk\",\"content\":\"Hi\"}\n\ndata: not-json\n\ndata: [DONE]\n\n"
			var dst bytes.Buffer

			err := sse.NewDecoder(strings.NewReader(input), sse.WithTee(&dst)).Dispatch(sse.Handlers{})
			Expect(err).NotTo(HaveOccurred())

			Expect(dst.String()).To(Equal(input))
		})

		It("reports a failing tee writer as a network error", func() {
			pr, pw := io.Pipe()
			_ = pr.Close()

			err := sse.NewDecoder(
				strings.NewReader("data: {\"type\":\"chunk\",\"content\":\"Hi\"}\n"),
				sse.WithTee(pw),
			).Dispatch(sse.Handlers{})

			var netErr *sse.NetworkError
			Expect(errors.As(err, &netErr)).To(BeTrue())
			Expect(errors.Is(err, io.ErrClosedPipe)).To(BeTrue())
		})
	})
})
