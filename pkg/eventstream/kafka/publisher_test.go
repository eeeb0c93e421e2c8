package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

type fakeWriter struct {
	msgs     []kafkago.Message
	deadline bool
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w *fakeWriter
		p *Publisher
	)

	BeforeEach(func() {
		w = &fakeWriter{}
		p = newPublisher(w, time.Second)
	})

	It("requires brokers", func() {
		_, err := NewPublisher(Config{})
		Expect(err).To(HaveOccurred())
	})

	It("builds a writer for the configured brokers", func() {
		pub, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}})
		Expect(err).NotTo(HaveOccurred())

		kw, ok := pub.writer.(*kafkago.Writer)
		Expect(ok).To(BeTrue())
		Expect(kw.Topic).To(Equal(DefaultTopic))
		Expect(pub.timeout).To(Equal(DefaultTimeout))
	})

	It("writes the event keyed by turn id", func() {
		event := eventstream.NewTurnRelayedEvent(&storage.Turn{ID: "turn-9", Status: 200}, "/functions/v1/chat")
		Expect(p.PublishTurn(context.Background(), event)).To(Succeed())

		Expect(w.msgs).To(HaveLen(1))
		Expect(string(w.msgs[0].Key)).To(Equal("turn-9"))
		Expect(w.deadline).To(BeTrue())

		var got eventstream.TurnRelayedEvent
		Expect(json.Unmarshal(w.msgs[0].Value, &got)).To(Succeed())
		Expect(got.EventID).To(Equal(event.EventID))
		Expect(w.msgs[0].Headers[0].Key).To(Equal("event_type"))
	})

	It("rejects nil events", func() {
		Expect(p.PublishTurn(context.Background(), nil)).To(MatchError(eventstream.ErrNilTurnEvent))
	})

	It("wraps writer errors", func() {
		w.err = errors.New("leader not available")
		err := p.PublishTurn(context.Background(), eventstream.NewTurnRelayedEvent(&storage.Turn{ID: "x"}, ""))
		Expect(err).To(MatchError(ContainSubstring("leader not available")))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
