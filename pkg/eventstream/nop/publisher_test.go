package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	var p *nop.Publisher

	BeforeEach(func() {
		p = nop.NewPublisher()
	})

	It("rejects nil events", func() {
		Expect(p.PublishTurn(context.Background(), nil)).To(MatchError(eventstream.ErrNilTurnEvent))
		Expect(p.Discarded()).To(BeZero())
	})

	It("counts discarded events", func() {
		for range 3 {
			Expect(p.PublishTurn(context.Background(), &eventstream.TurnRelayedEvent{})).To(Succeed())
		}
		Expect(p.Discarded()).To(Equal(int64(3)))
	})

	It("closes successfully", func() {
		Expect(p.Close()).To(Succeed())
	})
})
