package pipeline

// Context is the per-job accumulating map from stage name to stage output.
// It is owned exclusively by one Runner invocation, never shared across
// jobs, and discarded once the job reaches a terminal state.
type Context map[string]string

// NewContext seeds the execution context with the reserved input keys.
func NewContext(topic, year string) Context {
	return Context{TopicKey: topic, YearKey: year}
}

// Clone returns an independent copy.
func (c Context) Clone() Context {
	cp := make(Context, len(c))
	for k, v := range c {
		cp[k] = v
	}
	return cp
}
