//go:build !brain

package summarize

// newLocalEngine returns ErrLocalNotCompiled when built without the "brain"
// tag, matching the teacher's newEngine stub.
func newLocalEngine(_ LocalConfig) (localEngine, error) {
	return nil, ErrLocalNotCompiled
}
