package types_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/piclone-io/piclone-sdk/types"
)

// Captured from lsblk -J -b on a Pi with the system SD card and one USB
// stick attached. RM is a JSON bool here; older lsblk emits "0"/"1".
const lsblkFixture = `{
  "blockdevices": [
    {"name":"mmcblk0","type":"disk","size":31914983424,"rm":false,"tran":null,
     "children":[
       {"name":"mmcblk0p1","type":"part","size":268435456,"fstype":"vfat","mountpoint":"/boot/firmware","rm":false},
       {"name":"mmcblk0p2","type":"part","size":31645499392,"fstype":"ext4","mountpoint":"/","rm":false}
     ]},
    {"name":"sda","type":"disk","size":15931539456,"model":"Cruzer Blade","vendor":"SanDisk","tran":"usb","rm":"1",
     "children":[
       {"name":"sda1","type":"part","size":15930490880,"fstype":"ext4","label":"data","rm":"1"}
     ]}
  ]
}`

var _ = Describe("device tree parsing", func() {
	var devs []*types.Device

	BeforeEach(func() {
		var err error
		devs, err = types.ParseDeviceTree([]byte(lsblkFixture))
		Expect(err).ToNot(HaveOccurred())
		Expect(devs).To(HaveLen(2))
	})

	It("parses both bool and string encodings of rm", func() {
		Expect(bool(devs[0].Removable)).To(BeFalse())
		Expect(bool(devs[1].Removable)).To(BeTrue())
		Expect(bool(devs[1].Children[0].Removable)).To(BeTrue())
	})

	It("keeps children in disk order", func() {
		parts := devs[0].Partitions()
		Expect(parts).To(HaveLen(2))
		Expect(parts[0].Name).To(Equal("mmcblk0p1"))
		Expect(parts[1].Name).To(Equal("mmcblk0p2"))
	})

	It("resolves /dev nodes from bare names", func() {
		Expect(devs[1].Node()).To(Equal("/dev/sda"))
		Expect(devs[1].Children[0].Node()).To(Equal("/dev/sda1"))
	})

	It("flags the system disk through any descendant mountpoint", func() {
		Expect(devs[0].HasRootMountpoint()).To(BeTrue())
		Expect(devs[1].HasRootMountpoint()).To(BeFalse())
	})

	It("flags a disk whose only system mountpoint is the firmware partition", func() {
		usbBoot, err := types.ParseDeviceTree([]byte(`{"blockdevices":[
			{"name":"sdb","type":"disk","size":1000,"tran":"usb","rm":true,
			 "children":[{"name":"sdb1","type":"part","size":500,"mountpoint":"/boot/firmware","rm":true}]}
		]}`))
		Expect(err).ToNot(HaveOccurred())
		Expect(usbBoot[0].HasRootMountpoint()).To(BeTrue())
	})

	It("rejects malformed output", func() {
		_, err := types.ParseDeviceTree([]byte("not json"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("display formatting", func() {
	It("renders sizes in the largest fitting unit", func() {
		Expect(types.HumanSize(512)).To(Equal("512.0B"))
		Expect(types.HumanSize(1536)).To(Equal("1.5KB"))
		Expect(types.HumanSize(15931539456)).To(Equal("14.8GB"))
	})

	It("drops the trailing .0 in device labels", func() {
		d := &types.Device{Name: "sda", SizeBytes: 16 * 1024 * 1024 * 1024}
		Expect(types.FormatDeviceLabel(d)).To(Equal("sda 16GB"))
		Expect(types.FormatDeviceLabel(nil)).To(Equal(""))
	})

	It("truncates long messages to the screen width", func() {
		Expect(types.TruncateForDisplay("short")).To(Equal("short"))
		long := "this message is far too long for the screen"
		Expect(types.TruncateForDisplay(long)).To(HaveLen(types.DisplayWidth))
	})
})
