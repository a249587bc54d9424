package compositor

import "math"

const cadenceTolerance = 1e-9

// FrameCount is the number of frames needed to cover duration seconds at
// fps. Durations that are a whole number of frames up to float noise do not
// get an extra frame.
func FrameCount(duration float64, fps int) int {
	if duration <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Ceil(duration*float64(fps) - cadenceTolerance))
}

// FrameTime is the elapsed time of frame k
func FrameTime(k, fps int) float64 {
	return float64(k) / float64(fps)
}
