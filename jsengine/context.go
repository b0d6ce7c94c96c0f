package jsengine

// Context is an entered execution scope. No Value operation is legal
// unless some Context for the owning engine is entered on the loop
// goroutine; every Value method enters one internally, so Contexts only
// surface to callers composing multiple operations inside Engine.run.
//
// Scopes nest in strict stack order: the innermost context must exit
// first. Contexts are confined to the loop goroutine and must never be
// shared across goroutines.
type Context struct {
	eng    *Engine
	parent *Context
	exited bool
}

// enterContext pushes a new scope. Loop goroutine only.
func (e *Engine) enterContext() *Context {
	ctx := &Context{eng: e, parent: e.current}
	e.current = ctx
	return ctx
}

// Exit leaves the scope, restoring the previously entered context.
// Exiting out of nesting order is a programming error and panics.
func (c *Context) Exit() {
	if c.exited {
		panic("jsengine: context exited twice")
	}
	if c.eng.current != c {
		panic("jsengine: context exited out of nesting order")
	}
	c.exited = true
	c.eng.current = c.parent
}

// entered reports whether any context is currently entered.
// Loop goroutine only.
func (e *Engine) entered() bool {
	return e.current != nil
}
