// Package assert holds invariants that only break through programmer error,
// such as a constructor being handed a nil dependency.
package assert

func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
}
