package sse

// Terminated reports whether d has ended its run.
func Terminated(d *Decoder) bool {
	return d.terminated
}
