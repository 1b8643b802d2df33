package goscript

// StoredFunction is an opaque handle to a function value retained inside one
// runtime. It carries no engine state itself: the runtime keeps the value in
// an internal slot table, and the handle names the owning runtime plus the
// slot. A handle is only valid on the runtime that produced it; presenting it
// to any other runtime fails at call time.
type StoredFunction struct {
	runtimeID string
	slot      int
}
