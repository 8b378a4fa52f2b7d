package audio

const (
	// SampleRate is the audio sample rate used by Discord voice (48kHz)
	SampleRate = 48000
	// Channels is the number of audio channels Discord sends (stereo)
	Channels = 2
	// FrameSize is the frame size for 20ms at 48kHz (48000 * 0.02)
	FrameSize = 960
	// ChunkFrames is how many samples per channel a capture source delivers at once
	ChunkFrames = 4096
	// bytesPerSample for f32le PCM
	bytesPerSample = 4
)
