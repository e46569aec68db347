package telemetry

// Vector holds one three-axis reading
type Vector struct {
	X, Y, Z float32
}

// Sample is one timestamped reading of all sensor axes. Time is
// monotonic seconds since the pipeline started. Samples are immutable
// once created: the sampler produces them, the ring owns them until
// drained, the forwarder consumes them.
type Sample struct {
	Time         float32
	Acceleration Vector
	Gyroscope    Vector
	Magnetometer Vector
}
