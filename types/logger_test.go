package types_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/piclone-io/piclone-sdk/types"
)

var _ = Describe("logger", func() {
	var buf bytes.Buffer
	var log types.PicloneLogger

	BeforeEach(func() {
		buf = bytes.Buffer{}
		log = types.NewBufferLogger(&buf)
	})

	It("writes structured records", func() {
		log.Logger.Info().Str("device", "/dev/sda").Msg("Starting clone")
		Expect(buf.String()).To(ContainSubstring(`"device":"/dev/sda"`))
		Expect(buf.String()).To(ContainSubstring("Starting clone"))
	})

	It("honors level changes", func() {
		log.SetLevel("warn")
		log.Infof("hidden %d", 1)
		Expect(buf.String()).To(BeEmpty())
		log.Warnf("shown %d", 2)
		Expect(buf.String()).To(ContainSubstring("shown 2"))
		Expect(log.GetLevel()).To(Equal(zerolog.WarnLevel))
		Expect(log.IsDebug()).To(BeFalse())
	})

	It("swallows everything on the null logger", func() {
		null := types.NewNullLogger()
		null.Errorf("nobody sees %s", "this") // must not panic
	})
})

var _ = Describe("sink", func() {
	It("forwards Show to the display when one is set", func() {
		var got []string
		sink := types.Sink{
			Log:     types.NewNullLogger(),
			Display: types.DisplayFunc(func(lines ...string) { got = lines }),
		}
		sink.Show("CLONING", "Copy table")
		Expect(got).To(Equal([]string{"CLONING", "Copy table"}))
	})

	It("tolerates a missing display", func() {
		sink := types.Sink{Log: types.NewNullLogger()}
		sink.Show("ERASING") // must not panic
	})
})
