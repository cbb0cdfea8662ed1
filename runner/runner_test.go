package runner_test

import (
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/piclone-io/piclone-sdk/runner"
	"github.com/piclone-io/piclone-sdk/types"
)

func TestRunner(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "runner test suite")
}

var _ = Describe("runner", func() {
	var r *runner.Runner
	var frames [][]string

	BeforeEach(func() {
		frames = nil
		r = runner.New(types.Sink{
			Log: types.NewNullLogger(),
			Display: types.DisplayFunc(func(lines ...string) {
				frames = append(frames, append([]string{}, lines...))
			}),
		})
	})

	Describe("LookPath", func() {
		It("resolves tools present on PATH", func() {
			path, err := r.LookPath("sh")
			Expect(err).ToNot(HaveOccurred())
			Expect(path).ToNot(BeEmpty())
		})

		It("returns a named error for missing tools", func() {
			_, err := r.LookPath("definitely-not-a-real-tool")
			Expect(err).To(HaveOccurred())
			var notFound *types.ToolNotFoundError
			Expect(err).To(BeAssignableToTypeOf(notFound))
		})

		It("honors overrides without consulting PATH", func() {
			r.Overrides = map[string][]string{"dd": {"ionice", "-c3", "dd"}}
			path, err := r.LookPath("dd")
			Expect(err).ToNot(HaveOccurred())
			Expect(path).To(Equal("ionice"))
		})
	})

	Describe("Command", func() {
		It("prepends the override argv for overridden tools", func() {
			r.Overrides = map[string][]string{"dd": {"ionice", "-c3", "dd"}}
			argv, err := r.Command("dd", "if=/dev/zero")
			Expect(err).ToNot(HaveOccurred())
			Expect(argv).To(Equal([]string{"ionice", "-c3", "dd", "if=/dev/zero"}))
		})
	})

	Describe("RunChecked", func() {
		It("returns stdout on success", func() {
			out, err := r.RunChecked([]string{"sh", "-c", "echo hello"})
			Expect(err).ToNot(HaveOccurred())
			Expect(strings.TrimSpace(out)).To(Equal("hello"))
		})

		It("feeds WithInput to stdin", func() {
			out, err := r.RunChecked([]string{"sh", "-c", "cat"}, runner.WithInput("label: gpt\n"))
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(Equal("label: gpt\n"))
		})

		It("surfaces the first stderr line of a failing command", func() {
			_, err := r.RunChecked([]string{"sh", "-c", "echo oops >&2; exit 3"})
			Expect(err).To(HaveOccurred())
			var failed *types.CommandFailedError
			Expect(err).To(BeAssignableToTypeOf(failed))
			Expect(err.(*types.CommandFailedError).Output).To(Equal("oops"))
		})

		It("falls back to stdout for the diagnostic when stderr is silent", func() {
			_, err := r.RunChecked([]string{"sh", "-c", "echo broken; exit 1"})
			Expect(err).To(HaveOccurred())
			Expect(err.(*types.CommandFailedError).Output).To(Equal("broken"))
		})
	})

	Describe("RunStreamed", func() {
		It("monitors stderr and reports completion", func() {
			err := r.RunStreamed(
				[]string{"sh", "-c", "echo '1048576 bytes copied' >&2"},
				runner.StreamOptions{Title: "CLONING", TotalBytes: 2097152},
			)
			Expect(err).ToNot(HaveOccurred())
			Expect(frames[len(frames)-1]).To(Equal([]string{"CLONING", "Complete"}))
		})

		It("keeps the last stderr line as the failure diagnostic", func() {
			err := r.RunStreamed(
				[]string{"sh", "-c", "echo 'cannot open device' >&2; exit 1"},
				runner.StreamOptions{Title: "CLONING"},
			)
			Expect(err).To(HaveOccurred())
			Expect(err.(*types.CommandFailedError).Output).To(Equal("cannot open device"))
			Expect(frames[len(frames)-1][0]).To(Equal("FAILED"))
		})

		It("copies child stdout into the given writer", func() {
			var out strings.Builder
			err := r.RunStreamed(
				[]string{"sh", "-c", "printf payload"},
				runner.StreamOptions{Title: "PART 1/1", Stdout: &out},
			)
			Expect(err).ToNot(HaveOccurred())
			Expect(out.String()).To(Equal("payload"))
		})
	})

	Describe("ReadLines", func() {
		It("splits on both carriage returns and newlines", func() {
			lines := make(chan string)
			go runner.ReadLines(strings.NewReader("first\rsecond\nthird"), lines)

			var got []string
			for line := range lines {
				got = append(got, line)
			}
			Expect(got).To(Equal([]string{"first", "second", "third"}))
		})
	})
})
