package logagg

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_MailboxPreservesOrder checks that a single producer's events
// come out of the mailbox in the order they were put in, and that nothing
// after the sentinel is accepted.
func TestProperty_MailboxPreservesOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("events are received in put order", prop.ForAll(
		func(msgs []string) bool {
			box := newMailbox()
			for _, m := range msgs {
				box.put(Event{Message: m})
			}
			box.put(Event{sentinel: true})
			if box.put(Event{Message: "late"}) {
				return false
			}

			var got []string
			for {
				done := false
				for _, ev := range box.take() {
					if ev.sentinel {
						done = true
						break
					}
					got = append(got, ev.Message)
				}
				if done {
					break
				}
			}

			if len(got) != len(msgs) {
				return false
			}
			for i := range msgs {
				if got[i] != msgs[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
