// Package hooking lets tools observe writers and readers without changing
// their loop.
package hooking

// HookPos names a site where hooks fire.
type HookPos struct {
	Name string
}

// HookCtx describes one hook invocation.
type HookCtx struct {
	// Domain is the writer or reader that fires the hook.
	Domain Hookable

	// Pos identifies the site.
	Pos *HookPos

	// Item is the record the site is about, if any.
	Item any

	// Detail holds extra data of the site. It may be nil.
	Detail any
}

// Hookable is an object that runs hooks.
type Hookable interface {
	// AcceptHook registers a hook. Hooks are registered before the loop
	// starts and stay for the lifetime of the domain.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// InvokeHook runs the registered hooks in registration order.
	InvokeHook(ctx HookCtx)
}

// Hook is invoked by a hookable object.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function to a Hook. Each HookFunc value must be
// registered through a pointer since functions are not comparable.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f *HookFunc) Func(ctx HookCtx) {
	(*f)(ctx)
}

// HookableBase implements Hookable for embedding.
type HookableBase struct {
	hooks []Hook
}

// NewHookableBase creates a HookableBase.
func NewHookableBase() *HookableBase {
	return &HookableBase{}
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// AcceptHook registers a hook. Registering the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	for _, o := range h.hooks {
		if o == hook {
			panic("hooking: duplicated hook")
		}
	}

	h.hooks = append(h.hooks, hook)
}

// InvokeHook runs the registered hooks.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
