package schema_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bbos/schema"
)

var _ = Describe("Layout", func() {
	var layout *schema.Layout

	BeforeEach(func() {
		fields, err := schema.WithTimestamp([]schema.Field{
			schema.NewField("pos", schema.Float32, 2),
			schema.NewField("ok", schema.Bool),
			schema.NewField("depth", schema.Uint16, 2, 3),
			schema.TextField("state", 6),
		})
		Expect(err).ToNot(HaveOccurred())

		layout, err = schema.Compile(fields)
		Expect(err).ToNot(HaveOccurred())
	})

	It("should pack fields at exact offsets", func() {
		pos, _ := layout.Accessor("pos")
		ok, _ := layout.Accessor("ok")
		depth, _ := layout.Accessor("depth")
		state, _ := layout.Accessor("state")
		ts, _ := layout.Accessor(schema.TimestampName)

		Expect(pos.Offset).To(Equal(0))
		Expect(ok.Offset).To(Equal(8))
		Expect(depth.Offset).To(Equal(9))
		Expect(state.Offset).To(Equal(21))
		Expect(ts.Offset).To(Equal(27))
		Expect(layout.Size()).To(Equal(35))
	})

	It("should list the names in sorted order", func() {
		Expect(layout.Names()).To(Equal(
			[]string{"depth", "ok", "pos", "state", "timestamp"}))
	})

	It("should reject duplicated names", func() {
		_, err := schema.Compile([]schema.Field{
			schema.NewField("a", schema.Int8),
			schema.NewField("a", schema.Int8),
			schema.TimestampField(),
		})

		Expect(err).To(MatchError(schema.ErrInvalidSchema))
	})

	It("should reject a missing timestamp", func() {
		_, err := schema.Compile([]schema.Field{
			schema.NewField("a", schema.Int8),
		})

		Expect(err).To(MatchError(schema.ErrInvalidSchema))
	})

	It("should reject an unknown kind", func() {
		_, err := schema.Compile([]schema.Field{
			{Name: "a", Kind: schema.Invalid},
			schema.TimestampField(),
		})

		Expect(err).To(MatchError(schema.ErrInvalidSchema))
	})

	Context("records", func() {
		var rec schema.Record

		BeforeEach(func() {
			rec = layout.NewRecord()
		})

		It("should read back typed values", func() {
			schema.Slice[float32](rec, "pos")[1] = 2.5
			schema.SetValue(rec, "ok", true)
			schema.Slice[uint16](rec, "depth")[4] = 700
			rec.SetText("state", "mapping")
			rec.SetTimestamp(42)

			Expect(schema.Value[float32](rec, "pos")).To(Equal(float32(0)))
			Expect(schema.Slice[float32](rec, "pos")[1]).To(Equal(float32(2.5)))
			Expect(schema.Value[bool](rec, "ok")).To(BeTrue())
			Expect(schema.Slice[uint16](rec, "depth")).To(
				Equal([]uint16{0, 0, 0, 0, 700, 0}))
			Expect(rec.Text("state")).To(Equal("mappin"))
			Expect(rec.Timestamp()).To(Equal(int64(42)))
		})

		It("should alias the underlying buffer", func() {
			schema.Slice[float32](rec, "pos")[0] = 1

			view := layout.View(rec.Bytes())

			Expect(schema.Value[float32](view, "pos")).To(Equal(float32(1)))
		})

		It("should panic on a kind mismatch", func() {
			Expect(func() { schema.Value[int32](rec, "pos") }).To(Panic())
		})

		It("should panic on an unknown field", func() {
			Expect(func() { schema.Value[int32](rec, "nope") }).To(Panic())
		})

		It("should decode every field dynamically", func() {
			schema.Slice[float32](rec, "pos")[0] = float32(math.NaN())
			rec.SetText("state", "idle")
			rec.SetTimestamp(7)

			m := rec.Map()

			Expect(m["pos"]).To(Equal([]any{nil, float32(0)}))
			Expect(m["ok"]).To(BeFalse())
			Expect(m["state"]).To(Equal("idle"))
			Expect(m["timestamp"]).To(Equal(int64(7)))

			_, err := rec.Get("nope")
			Expect(err).To(MatchError(schema.ErrSchemaNotFound))
		})

		It("should clear the record", func() {
			rec.SetTimestamp(9)
			rec.Clear()

			Expect(rec.Timestamp()).To(BeZero())
		})
	})
})
