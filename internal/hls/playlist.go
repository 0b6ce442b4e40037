package hls

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/grafov/m3u8"
)

// defaultTargetDuration applies when a playlist omits EXT-X-TARGETDURATION.
const defaultTargetDuration = 2 * time.Second

// Segment is one media chunk listed in a playlist.
type Segment struct {
	Sequence uint64
	URI      string
	Duration time.Duration
}

// Playlist is a parsed live playlist. A master playlist yields only Variant.
type Playlist struct {
	Variant        string
	TargetDuration time.Duration
	Segments       []Segment
	Ended          bool
}

// LastSequence returns the sequence number of the newest segment.
func (p *Playlist) LastSequence() (uint64, bool) {
	if len(p.Segments) == 0 {
		return 0, false
	}
	return p.Segments[len(p.Segments)-1].Sequence, true
}

// parsePlaylist decodes body and resolves URIs against base.
func parsePlaylist(body []byte, base *url.URL) (*Playlist, error) {
	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, fmt.Errorf("parse playlist: %w", err)
	}

	switch listType {
	case m3u8.MASTER:
		master := pl.(*m3u8.MasterPlaylist)
		for _, v := range master.Variants {
			if v != nil && v.URI != "" {
				return &Playlist{Variant: resolve(base, v.URI)}, nil
			}
		}
		return nil, errors.New("parse playlist: master playlist has no variants")

	case m3u8.MEDIA:
		media := pl.(*m3u8.MediaPlaylist)
		out := &Playlist{
			TargetDuration: seconds(media.TargetDuration),
			Ended:          media.Closed,
		}
		if out.TargetDuration <= 0 {
			out.TargetDuration = defaultTargetDuration
		}
		for i, seg := range media.Segments {
			// The decoder's ring buffer leaves trailing nil slots.
			if seg == nil {
				break
			}
			out.Segments = append(out.Segments, Segment{
				Sequence: media.SeqNo + uint64(i),
				URI:      resolve(base, seg.URI),
				Duration: seconds(seg.Duration),
			})
		}
		return out, nil

	default:
		return nil, errors.New("parse playlist: unknown playlist type")
	}
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// validSegment sniffs the container: MPEG-TS sync byte, ID3-tagged packed
// audio, or an ADTS frame header.
func validSegment(b []byte) bool {
	switch {
	case len(b) == 0:
		return false
	case b[0] == 0x47:
		return len(b) < 189 || b[188] == 0x47
	case len(b) >= 3 && string(b[:3]) == "ID3":
		return true
	case len(b) >= 2 && b[0] == 0xFF && b[1]&0xF0 == 0xF0:
		return true
	default:
		return false
	}
}
