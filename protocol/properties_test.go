package protocol

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Snapshot", func() {
	var snap *Snapshot

	BeforeEach(func() {
		snap = newSnapshot()
	})

	It("replaces values wholesale", func() {
		snap.Replace(map[string]interface{}{`power`: `on`, `bright`: `50`})
		snap.Replace(map[string]interface{}{`power`: `off`})

		Expect(snap.Power()).To(Equal(`off`))
		_, ok := snap.Get(`bright`)
		Expect(ok).To(BeFalse())
	})

	It("merges values on top of existing ones", func() {
		snap.Replace(map[string]interface{}{`power`: `on`, `bright`: `50`})
		snap.Merge(map[string]interface{}{`bright`: `80`})

		Expect(snap.Power()).To(Equal(`on`))
		bright, _ := snap.Get(`bright`)
		Expect(bright).To(Equal(`80`))
	})

	Describe("current brightness", func() {
		It("is unknown without a power state", func() {
			Expect(snap.CurrentBrightness()).To(Equal(``))
		})

		It("is zero when the lamp is off", func() {
			snap.Replace(map[string]interface{}{`power`: `off`, `bright`: `50`})
			Expect(snap.CurrentBrightness()).To(Equal(`0`))
		})

		It("follows the main brightness when on", func() {
			snap.Replace(map[string]interface{}{`power`: `on`, `bright`: `50`})
			Expect(snap.CurrentBrightness()).To(Equal(`50`))
		})

		It("follows the night light brightness in night light mode", func() {
			snap.Replace(map[string]interface{}{
				`power`: `on`, `bright`: `50`, `active_mode`: `1`, `nl_br`: `10`,
			})
			Expect(snap.CurrentBrightness()).To(Equal(`10`))
		})
	})

	Describe("All", func() {
		It("includes the derived current brightness", func() {
			snap.Replace(map[string]interface{}{`power`: `on`, `bright`: `50`})
			all := snap.All()
			Expect(all).To(HaveKeyWithValue(`current_brightness`, `50`))
		})

		It("omits the derived key when brightness is unknown", func() {
			all := snap.All()
			Expect(all).NotTo(HaveKey(`current_brightness`))
		})

		It("returns a copy", func() {
			snap.Replace(map[string]interface{}{`power`: `on`})
			all := snap.All()
			all[`power`] = `off`
			Expect(snap.Power()).To(Equal(`on`))
		})
	})
})
