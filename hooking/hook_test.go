package hooking_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bbos/hooking"
)

var _ = Describe("HookableBase", func() {
	var (
		base *hooking.HookableBase
		pos  = &hooking.HookPos{Name: "Test"}
	)

	BeforeEach(func() {
		base = hooking.NewHookableBase()
	})

	It("should invoke hooks in registration order", func() {
		var order []string

		first := hooking.HookFunc(func(ctx hooking.HookCtx) {
			order = append(order, "first:"+ctx.Pos.Name)
		})
		second := hooking.HookFunc(func(ctx hooking.HookCtx) {
			order = append(order, "second:"+ctx.Item.(string))
		})

		base.AcceptHook(&first)
		base.AcceptHook(&second)
		base.InvokeHook(hooking.HookCtx{Domain: base, Pos: pos, Item: "x"})

		Expect(base.NumHooks()).To(Equal(2))
		Expect(order).To(Equal([]string{"first:Test", "second:x"}))
	})

	It("should panic on a duplicated hook", func() {
		h := hooking.HookFunc(func(hooking.HookCtx) {})
		base.AcceptHook(&h)

		Expect(func() { base.AcceptHook(&h) }).To(Panic())
	})
})
