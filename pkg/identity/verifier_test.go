package identity

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BearerToken", func() {
	DescribeTable("extracting the token",
		func(header, want string, wantErr error) {
			got, err := BearerToken(header)
			if wantErr != nil {
				Expect(err).To(MatchError(wantErr))
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("standard", "Bearer abc", "abc", nil),
		Entry("case insensitive scheme", "bearer abc", "abc", nil),
		Entry("surrounding space", "  Bearer   abc  ", "abc", nil),
		Entry("empty", "", "", ErrMissingCredential),
		Entry("scheme only", "Bearer", "", ErrMissingCredential),
		Entry("blank token", "Bearer   ", "", ErrMissingCredential),
		Entry("other scheme", "Basic dXNlcjpwYXNz", "", ErrMissingCredential),
	)
})
