package erase_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/piclone-io/piclone-sdk/constants"
	"github.com/piclone-io/piclone-sdk/erase"
	"github.com/piclone-io/piclone-sdk/runner/mocks"
	"github.com/piclone-io/piclone-sdk/types"
)

func TestErase(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "erase test suite")
}

var _ = Describe("erase", func() {
	var fake *mocks.FakeExecutor
	var eraser *erase.Eraser

	newTarget := func(sizeBytes int64) *types.Device {
		return &types.Device{Name: "sdb", Kind: types.KindDisk, SizeBytes: sizeBytes}
	}

	BeforeEach(func() {
		fake = mocks.NewFakeExecutor()
		fake.Outputs["lsblk"] = `{"blockdevices":[]}`
		eraser = erase.New(fake, nil)
	})

	Describe("quick mode", func() {
		It("wipes signatures, then zero-fills head and tail windows", func() {
			Expect(eraser.Device(newTarget(100*constants.MiB), "quick")).To(Succeed())

			Expect(fake.StreamedLines()).To(Equal([]string{
				"wipefs -a /dev/sdb",
				"dd if=/dev/zero of=/dev/sdb bs=1M count=32 status=progress conv=fsync",
				"dd if=/dev/zero of=/dev/sdb bs=1M count=32 seek=68 status=progress conv=fsync",
			}))
		})

		It("skips the tail window on media no larger than the window", func() {
			Expect(eraser.Device(newTarget(20*constants.MiB), "quick")).To(Succeed())

			Expect(fake.StreamedLines()).To(Equal([]string{
				"wipefs -a /dev/sdb",
				"dd if=/dev/zero of=/dev/sdb bs=1M count=20 status=progress conv=fsync",
			}))
		})

		It("rounds sub-MiB sizes down when placing the tail window", func() {
			Expect(eraser.Device(newTarget(100*constants.MiB+12345), "quick")).To(Succeed())
			Expect(fake.StreamedLines()).To(ContainElement(
				"dd if=/dev/zero of=/dev/sdb bs=1M count=32 seek=68 status=progress conv=fsync"))
		})

		It("honors a configured window size", func() {
			eraser.QuickWindowMiB = 8
			Expect(eraser.Device(newTarget(100*constants.MiB), "quick")).To(Succeed())
			Expect(fake.StreamedLines()).To(ContainElement(
				"dd if=/dev/zero of=/dev/sdb bs=1M count=8 seek=92 status=progress conv=fsync"))
		})

		It("fails without wipefs instead of degrading", func() {
			fake.Missing["wipefs"] = true
			err := eraser.Device(newTarget(100*constants.MiB), "quick")
			Expect(err).To(HaveOccurred())
			Expect(fake.Streamed).To(BeEmpty())
			Expect(fake.Display.Saw("ERROR")).To(BeTrue())
		})
	})

	It("zero mode overwrites the whole device", func() {
		Expect(eraser.Device(newTarget(100*constants.MiB), "zero")).To(Succeed())
		Expect(fake.StreamedLines()).To(Equal([]string{
			"dd if=/dev/zero of=/dev/sdb bs=4M status=progress conv=fsync",
		}))
	})

	It("discard mode issues blkdiscard", func() {
		Expect(eraser.Device(newTarget(100*constants.MiB), "discard")).To(Succeed())
		Expect(fake.StreamedLines()).To(Equal([]string{"blkdiscard /dev/sdb"}))
	})

	It("secure mode shreds with a final zero pass", func() {
		Expect(eraser.Device(newTarget(100*constants.MiB), "secure")).To(Succeed())
		Expect(fake.StreamedLines()).To(Equal([]string{"shred -v -n 1 -z /dev/sdb"}))
	})

	It("never substitutes one mode for another when its tool is missing", func() {
		fake.Missing["blkdiscard"] = true
		err := eraser.Device(newTarget(100*constants.MiB), "discard")
		Expect(err).To(HaveOccurred())
		var notFound *types.ToolNotFoundError
		Expect(err).To(BeAssignableToTypeOf(notFound))
		Expect(fake.Streamed).To(BeEmpty())
	})

	It("rejects unknown modes before touching the device", func() {
		err := eraser.Device(newTarget(100*constants.MiB), "paranoid")
		Expect(err).To(HaveOccurred())
		var unknown *types.UnknownModeError
		Expect(err).To(BeAssignableToTypeOf(unknown))
		Expect(fake.Streamed).To(BeEmpty())
		Expect(fake.Checked).To(BeEmpty())
		Expect(fake.Display.Saw("ERROR")).To(BeTrue())
	})

	It("unmounts the target's mountpoints before erasing", func() {
		target := newTarget(100 * constants.MiB)
		target.Children = []*types.Device{
			{Name: "sdb1", Kind: types.KindPart, Mountpoint: "/media/usb0"},
		}
		Expect(eraser.Device(target, "zero")).To(Succeed())
		Expect(fake.CheckedLines()).To(ContainElement("umount /media/usb0"))
	})
})
