package flow_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/lanterndev/goyeelight/flow"
)

var _ = Describe("Flow", func() {
	Describe("color values", func() {
		It("packs RGB channels into a single integer", func() {
			Expect(flow.RGB(255, 255, 0)).To(Equal(16776960))
			Expect(flow.RGB(255, 0, 0)).To(Equal(16711680))
			Expect(flow.RGB(0, 0, 0)).To(Equal(0))
		})

		It("converts HSV at full value", func() {
			Expect(flow.HSV(200, 100)).To(Equal(43263))
			Expect(flow.HSV(0, 0)).To(Equal(16777215))
			Expect(flow.HSV(0, 100)).To(Equal(16711680))
		})
	})

	Describe("expressions", func() {
		It("renders transitions as duration, mode, value, brightness tuples", func() {
			f := flow.New(1, flow.Stay,
				flow.RGBTransition(255, 0, 0, 250, 100),
				flow.SleepTransition(400),
			)
			Expect(f.Expression()).To(Equal(`250, 1, 16711680, 100, 400, 7, 0, 0`))
		})

		It("clamps transition durations to the device minimum", func() {
			f := flow.New(1, flow.Stay, flow.TemperatureTransition(2700, 10, 50))
			Expect(f.Expression()).To(Equal(`50, 2, 2700, 50`))
		})

		It("builds start_cf params from count, action and expression", func() {
			f := flow.New(2, flow.Off,
				flow.TemperatureTransition(1700, 500, 80),
				flow.TemperatureTransition(6500, 500, 80),
			)
			Expect(f.Params()).To(Equal([]interface{}{4, 2, `500, 2, 1700, 80, 500, 2, 6500, 80`}))
		})
	})

	Describe("presets", func() {
		It("paces disco to the beat", func() {
			f := flow.Disco(120)
			Expect(f.Count).To(Equal(0))
			Expect(f.Transitions).To(HaveLen(8))
			Expect(f.Transitions[0].Duration).To(Equal(500))
		})

		It("pulses once and recovers", func() {
			f := flow.Pulse(0, 255, 0, 250, 100)
			Expect(f.Count).To(Equal(1))
			Expect(f.Action).To(Equal(flow.Recover))
			Expect(f.Transitions).To(HaveLen(2))
			Expect(f.Transitions[0].Value).To(Equal(flow.RGB(0, 255, 0)))
		})

		It("winds slowdown to zero and turns off", func() {
			f := flow.Slowdown(1000, 5)
			Expect(f.Action).To(Equal(flow.Off))
			Expect(len(f.Transitions)).To(BeNumerically(`>`, 0))
			last := f.Transitions[len(f.Transitions)-1]
			Expect(last.Brightness).To(BeNumerically(`>`, 0))
		})
	})
})
