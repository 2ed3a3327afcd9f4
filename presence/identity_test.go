package presence_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bbos/presence"
	"github.com/sarchlab/bbos/schema"
)

var _ = Describe("Identity", func() {
	It("should normalize channel names", func() {
		Expect(presence.Identity("drive_ctrl")).To(Equal("@/drive_ctrl.bbos"))
		Expect(presence.Identity("/drive_ctrl")).To(Equal("@/drive_ctrl.bbos"))
		Expect(presence.TelemetryIdentity("imu", "app.12.0")).To(
			Equal("@/imu__app.12.0__timelog.bbos"))
	})

	It("should parse identities back", func() {
		e, ok := presence.ParseIdentity("@/imu__app.12.0__timelog.bbos")
		Expect(ok).To(BeTrue())
		Expect(e.Channel).To(Equal("/imu"))
		Expect(e.Consumer).To(Equal("app.12.0"))
		Expect(e.IsTelemetry()).To(BeTrue())

		e, ok = presence.ParseIdentity("@/camera_jpeg.bbos")
		Expect(ok).To(BeTrue())
		Expect(e.Channel).To(Equal("/camera_jpeg"))
		Expect(e.IsTelemetry()).To(BeFalse())

		_, ok = presence.ParseIdentity("@/tmp/.X11-unix/X0")
		Expect(ok).To(BeFalse())
	})

	It("should keep double underscores in channel names", func() {
		id := presence.TelemetryIdentity("/drive__ctrl", "viewer.7.1")

		e, ok := presence.ParseIdentity(id)
		Expect(ok).To(BeTrue())
		Expect(e.Channel).To(Equal("/drive__ctrl"))
		Expect(e.Consumer).To(Equal("viewer.7.1"))

		_, ok = presence.ParseIdentity("@/imu____timelog.bbos")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Record", func() {
	It("should carry the writer description", func() {
		typ := schema.MustNewType("drive_ctrl", 30,
			schema.NewField("twist", schema.Float32, 2))

		rec := presence.NewRecord(presence.Caller(0), typ)
		data, err := rec.Encode()
		Expect(err).ToNot(HaveOccurred())

		decoded, err := presence.DecodeRecord(data)

		Expect(err).ToNot(HaveOccurred())
		Expect(decoded.Caller).To(ContainSubstring("identity_test.go:"))
		Expect(decoded.Period).To(Equal(30))
		Expect(decoded.Instance).ToNot(BeEmpty())
		Expect(decoded.DType.Equal(schema.Descriptor(typ.Fields))).To(BeTrue())
		Expect(string(data)).To(ContainSubstring(`"cores":[]`))
	})

	It("should refuse records that do not fit one packet", func() {
		rec := presence.Record{Caller: strings.Repeat("x", presence.PayloadSize)}

		_, err := rec.Encode()

		Expect(err).To(MatchError(presence.ErrPayloadTooLarge))
	})
})

var _ = Describe("Socket table", func() {
	table := `Num       RefCount Protocol Flags    Type St Inode Path
0000000000000000: 00000002 00000000 00010000 0005 01 1001 @/drive_ctrl.bbos
0000000000000000: 00000003 00000000 00000000 0005 03 1002 @/drive_ctrl.bbos
0000000000000000: 00000002 00000000 00010000 0005 01 1003 @/drive_ctrl__viewer.1.0__timelog.bbos
0000000000000000: 00000002 00000000 00010000 0001 01 1004 /run/systemd/notify
0000000000000000: 00000002 00000000 00010000 0005 01 1005 @/camera_jpeg.bbos
0000000000000000: 00000002 00000000 00000000 0002 01 1006
`

	It("should keep listening abstract identities", func() {
		entries, err := presence.ParseSocketTable(strings.NewReader(table))

		Expect(err).ToNot(HaveOccurred())
		Expect(entries).To(HaveLen(3))
		Expect(entries[0].Identity).To(Equal("@/camera_jpeg.bbos"))

		channels := presence.Channels(entries)
		Expect(channels).To(HaveLen(2))

		consumers := presence.Consumers(entries, "drive_ctrl")
		Expect(consumers).To(HaveLen(1))
		Expect(consumers[0].Consumer).To(Equal("viewer.1.0"))
	})
})
