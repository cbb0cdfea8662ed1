package bus_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/piclone-io/piclone-sdk/bus"
	"github.com/piclone-io/piclone-sdk/types"
)

func TestBus(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "bus test suite")
}

var _ = Describe("bus", func() {
	It("listens on every engine event by default", func() {
		b := bus.NewBus()
		b.Initialize(bus.WithLogger(types.NewNullLogger()))
		for _, event := range bus.AllEvents {
			Expect(b.Manager.Events).To(ContainElement(event))
		}
	})

	It("restricts the event set when asked", func() {
		b := bus.NewBus(bus.EventCloneStart)
		Expect(b.Manager.Events).To(HaveLen(1))
	})

	It("swallows publishes with no subscribers", func() {
		b := bus.NewBus()
		b.Initialize(bus.WithLogger(types.NewNullLogger()))
		b.PublishOperation(bus.EventCloneStart, bus.OperationPayload{
			ID:     "op-1",
			Source: "/dev/sda",
			Target: "/dev/sdb",
			Mode:   "smart",
		})
	})

	It("is inert when nil", func() {
		var b *bus.Bus
		b.PublishOperation(bus.EventCloneDone, bus.OperationPayload{Target: "/dev/sdb"})
	})
})
