package catalog_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bbos/catalog"
	"github.com/sarchlab/bbos/schema"
)

var _ = Describe("Catalog", func() {
	var reg *schema.Registry

	BeforeEach(func() {
		reg = schema.NewRegistry()
		Expect(catalog.Register(reg)).To(Succeed())
	})

	It("should register into the default registry on import", func() {
		Expect(schema.Default().TypeNames()).To(ContainElements(
			"drive_ctrl", "imu_data", "camera_jpeg", "slam_trigger"))
	})

	It("should refuse to register twice", func() {
		Expect(catalog.Register(reg)).To(MatchError(schema.ErrSchemaConflict))
	})

	It("should resolve every type", func() {
		Expect(reg.Resolve()).To(Succeed())

		Expect(reg.TypeNames()).To(ConsistOf(
			"drive_ctrl", "drive_state", "drive_status",
			"imu_data", "imu_orientation",
			"camera_jpeg", "camera_depth", "camera_points",
			"led_strip_ctrl",
			"speakerphone_speaker", "speakerphone_mic",
			"slam_trigger", "slam_pose", "slam_debug",
		))

		for _, name := range reg.TypeNames() {
			typ, err := reg.LookupType(name)
			Expect(err).ToNot(HaveOccurred())

			_, err = typ.Layout()
			Expect(err).ToNot(HaveOccurred(), name)
		}
	})

	It("should derive the stereo radius", func() {
		stereo, err := reg.LookupConfig("stereo")
		Expect(err).ToNot(HaveOccurred())

		Expect(stereo.Float("r")).To(BeNumerically("~", math.Sqrt(1280*1280+720*720), 1e-9))
	})

	It("should size the depth image from the stereo frame", func() {
		typ, err := reg.LookupType("camera_depth")
		Expect(err).ToNot(HaveOccurred())

		Expect(typ.Fields[0].Shape).To(Equal([]int{180, 320}))
		Expect(typ.Priority).To(Equal(catalog.CtrlMed))
		Expect(typ.Cores).To(Equal([]int{0, 1}))
		Expect(typ.PeriodMs).To(Equal(10))
	})

	It("should derive the audio chunks", func() {
		typ, err := reg.LookupType("speakerphone_mic")
		Expect(err).ToNot(HaveOccurred())

		Expect(typ.Fields[0].Shape).To(Equal([]int{1600, 1}))
		Expect(typ.PeriodMs).To(Equal(100))

		speaker, err := reg.LookupType("speakerphone_speaker")
		Expect(err).ToNot(HaveOccurred())
		Expect(speaker.PeriodMs).To(Equal(110))
	})

	It("should follow config overrides", func() {
		reg.SetOverrides(map[string]string{
			schema.EnvKey("led_strip", "num_leds"): "30",
			schema.EnvKey("stereo", "width"):       "1280",
		})

		leds, err := reg.LookupType("led_strip_ctrl")
		Expect(err).ToNot(HaveOccurred())
		Expect(leds.Fields[0].Shape).To(Equal([]int{30, 3}))

		depth, err := reg.LookupConfig("depth")
		Expect(err).ToNot(HaveOccurred())
		Expect(depth.Int("width")).To(Equal(160))
	})

	It("should describe a state type without period", func() {
		typ, err := reg.LookupType("slam_trigger")
		Expect(err).ToNot(HaveOccurred())

		Expect(typ.HasPeriod()).To(BeFalse())
		Expect(typ.Fields).To(HaveLen(3))
		Expect(typ.Fields[2].Name).To(Equal(schema.TimestampName))
	})
})
