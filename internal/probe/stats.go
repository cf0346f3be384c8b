package probe

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/junsooki/reel/internal/decoder"
)

// Stats tallies decoded frames.
type Stats struct {
	Frames   int64
	Bytes    int64
	ByType   map[rune]int64
	FirstPTS time.Duration
	LastPTS  time.Duration
}

// Add records f.
func (s *Stats) Add(f *decoder.Frame) {
	if s.ByType == nil {
		s.ByType = make(map[rune]int64)
	}
	if s.Frames == 0 {
		s.FirstPTS = f.PTS
	}
	s.Frames++
	s.Bytes += int64(f.PacketSize)
	s.ByType[f.PictureType]++
	s.LastPTS = f.PTS
}

// Span is the time between the first and last frame.
func (s *Stats) Span() time.Duration {
	return s.LastPTS - s.FirstPTS
}

// Summary renders the totals on one line, e.g.
// "3 frames, 1234 bytes, span 80ms (I=1 P=2)".
func (s *Stats) Summary() string {
	if s.Frames == 0 {
		return "0 frames"
	}
	types := make([]rune, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%c=%d", t, s.ByType[t]))
	}
	return fmt.Sprintf("%d frames, %d bytes, span %s (%s)", s.Frames, s.Bytes, s.Span(), strings.Join(parts, " "))
}
