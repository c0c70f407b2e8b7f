package internal

// PanicOnError panics if err is non-nil.
// Only for states the generator itself must never reach, such as an
// abstract statement without a lowering or a setter class without a shim.
func PanicOnError(err error) {
	if err != nil {
		panic(err)
	}
}
