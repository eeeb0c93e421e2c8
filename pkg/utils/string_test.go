package utils

import (
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Truncate", func() {
	It("leaves strings within the limit alone", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("cuts with an ellipsis when over the limit", func() {
		Expect(Truncate("this is a long string", 10)).To(Equal("this is a ..."))
	})

	It("backs off to a rune boundary", func() {
		// "ö" is two bytes; a cut at 2 would land inside it.
		got := Truncate("aö-bbbb", 2)
		Expect(got).To(Equal("a..."))
		Expect(utf8.ValidString(got)).To(BeTrue())
	})
})
