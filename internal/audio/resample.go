package audio

// convert resamples buf to rate and remixes it to channels using linear
// interpolation. The result is interleaved.
func convert(buf *Buffer, rate, channels int) []float32 {
	mixed := remix(buf.Samples, buf.Channels, channels)
	if buf.SampleRate == rate || buf.SampleRate <= 0 {
		return mixed
	}

	inFrames := len(mixed) / channels
	if inFrames == 0 {
		return nil
	}
	outFrames := int(int64(inFrames) * int64(rate) / int64(buf.SampleRate))
	out := make([]float32, outFrames*channels)
	step := float64(buf.SampleRate) / float64(rate)

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		j := int(pos)
		frac := float32(pos - float64(j))
		next := j + 1
		if next >= inFrames {
			next = inFrames - 1
		}
		for c := 0; c < channels; c++ {
			a := mixed[j*channels+c]
			b := mixed[next*channels+c]
			out[i*channels+c] = a + (b-a)*frac
		}
	}
	return out
}

func remix(in []float32, from, to int) []float32 {
	if from == to {
		return in
	}
	frames := len(in) / from
	out := make([]float32, frames*to)

	for f := 0; f < frames; f++ {
		src := in[f*from : (f+1)*from]
		if to == 1 {
			var sum float32
			for _, s := range src {
				sum += s
			}
			out[f] = sum / float32(from)
			continue
		}
		for c := 0; c < to; c++ {
			// Mono fans out; extra input channels beyond the output are dropped.
			out[f*to+c] = src[c%from]
		}
	}
	return out
}
