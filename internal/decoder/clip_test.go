package decoder

import (
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
)

const (
	clipWidth      = 64
	clipHeight     = 48
	clipFrames     = 50
	clipFPS        = 25
	clipSampleRate = 8000
	clipLuma       = 128
)

// writeClip encodes a short matroska file with a grey yuvj420p MJPEG video
// stream followed by a silent PCM audio stream and returns its path.
func writeClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mkv")

	fc, err := astiav.AllocOutputFormatContext(nil, "matroska", path)
	require.NoError(t, err)
	defer fc.Free()

	video := newClipEncoder(t, astiav.CodecIDMjpeg, func(cc *astiav.CodecContext) {
		cc.SetWidth(clipWidth)
		cc.SetHeight(clipHeight)
		cc.SetPixelFormat(astiav.PixelFormatYuvj420P)
		cc.SetTimeBase(astiav.NewRational(1, clipFPS))
		cc.SetFramerate(astiav.NewRational(clipFPS, 1))
	})
	defer video.Free()
	audio := newClipEncoder(t, astiav.CodecIDPcmS16Le, func(cc *astiav.CodecContext) {
		cc.SetSampleFormat(astiav.SampleFormatS16)
		cc.SetSampleRate(clipSampleRate)
		cc.SetChannelLayout(astiav.ChannelLayoutMono)
		cc.SetTimeBase(astiav.NewRational(1, clipSampleRate))
	})
	defer audio.Free()

	vs := fc.NewStream(nil)
	require.NotNil(t, vs)
	require.NoError(t, vs.CodecParameters().FromCodecContext(video))
	vs.SetTimeBase(video.TimeBase())
	vs.SetAvgFrameRate(astiav.NewRational(clipFPS, 1))

	as := fc.NewStream(nil)
	require.NotNil(t, as)
	require.NoError(t, as.CodecParameters().FromCodecContext(audio))
	as.SetTimeBase(audio.TimeBase())

	ic, err := astiav.OpenIOContext(path, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
	require.NoError(t, err)
	fc.SetPb(ic)
	require.NoError(t, fc.WriteHeader(nil))

	pkt := astiav.AllocPacket()
	defer pkt.Free()
	write := func(cc *astiav.CodecContext, st *astiav.Stream, f *astiav.Frame) {
		require.NoError(t, cc.SendFrame(f))
		for {
			err := cc.ReceivePacket(pkt)
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return
			}
			require.NoError(t, err)
			pkt.SetStreamIndex(st.Index())
			pkt.RescaleTs(cc.TimeBase(), st.TimeBase())
			require.NoError(t, fc.WriteInterleavedFrame(pkt))
		}
	}

	vf := astiav.AllocFrame()
	defer vf.Free()
	vf.SetWidth(clipWidth)
	vf.SetHeight(clipHeight)
	vf.SetPixelFormat(astiav.PixelFormatYuvj420P)
	require.NoError(t, vf.AllocBuffer(0))

	grey := image.NewYCbCr(image.Rect(0, 0, clipWidth, clipHeight), image.YCbCrSubsampleRatio420)
	fill(grey.Y, clipLuma)
	fill(grey.Cb, 128)
	fill(grey.Cr, 128)

	const samplesPerFrame = clipSampleRate / clipFPS
	af := astiav.AllocFrame()
	defer af.Free()
	af.SetNbSamples(samplesPerFrame)
	af.SetSampleFormat(astiav.SampleFormatS16)
	af.SetSampleRate(clipSampleRate)
	af.SetChannelLayout(astiav.ChannelLayoutMono)
	require.NoError(t, af.AllocBuffer(0))
	require.NoError(t, af.SamplesFillSilence())

	for i := 0; i < clipFrames; i++ {
		require.NoError(t, vf.MakeWritable())
		require.NoError(t, vf.Data().FromImage(grey))
		vf.SetPts(int64(i))
		write(video, vs, vf)

		af.SetPts(int64(i * samplesPerFrame))
		write(audio, as, af)
	}
	write(video, vs, nil)
	write(audio, as, nil)

	require.NoError(t, fc.WriteTrailer())
	require.NoError(t, ic.Close())
	return path
}

func newClipEncoder(t *testing.T, id astiav.CodecID, configure func(cc *astiav.CodecContext)) *astiav.CodecContext {
	t.Helper()
	codec := astiav.FindEncoder(id)
	require.NotNil(t, codec, "encoder %s", id)
	cc := astiav.AllocCodecContext(codec)
	require.NotNil(t, cc)
	configure(cc)
	require.NoError(t, cc.Open(codec, nil))
	return cc
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
