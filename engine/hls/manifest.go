package hls

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
	"github.com/reels-cli/reels/engine"
)

var (
	errNotPlaylist = errors.New("not an HLS playlist")
	errEncrypted   = errors.New("encrypted streams are not supported")
	errEmpty       = errors.New("playlist has no segments")
)

type byteRange struct {
	limit  int64
	offset int64
}

func (r byteRange) header() string {
	if r.limit <= 0 {
		return ""
	}
	return fmt.Sprintf("bytes=%d-%d", r.offset, r.offset+r.limit-1)
}

type segment struct {
	sn       int
	uri      string
	rng      byteRange
	start    float64
	duration float64
}

type initSection struct {
	uri string
	rng byteRange
}

// mediaPlaylist is a decoded level playlist with absolute URIs and cumulative start times.
type mediaPlaylist struct {
	segments []segment
	target   float64
	closed   bool
	init     *initSection
}

func (p *mediaPlaylist) duration() float64 {
	if len(p.segments) == 0 {
		return 0
	}
	last := p.segments[len(p.segments)-1]
	return last.start + last.duration
}

// indexAt returns the index of the segment playing at t.
func (p *mediaPlaylist) indexAt(t float64) int {
	i := sort.Search(len(p.segments), func(i int) bool {
		return p.segments[i].start+p.segments[i].duration > t
	})
	if i == len(p.segments) {
		return max(0, len(p.segments)-1)
	}
	return i
}

func (p *mediaPlaylist) bySN(sn int) (segment, bool) {
	if len(p.segments) == 0 {
		return segment{}, false
	}
	i := sn - p.segments[0].sn
	if i < 0 || i >= len(p.segments) {
		return segment{}, false
	}
	return p.segments[i], true
}

// decode parses a manifest. A master playlist yields its levels, lowest bandwidth first; a media
// playlist yields a single level and the playlist itself.
func decode(base string, body []byte) ([]engine.Level, *mediaPlaylist, error) {
	playlist, kind, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", errNotPlaylist, err)
	}

	switch kind {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		levels, err := levelsOf(base, master)
		return levels, nil, err
	case m3u8.MEDIA:
		media, err := mediaOf(base, playlist.(*m3u8.MediaPlaylist))
		if err != nil {
			return nil, nil, err
		}
		return []engine.Level{{URI: base}}, media, nil
	default:
		return nil, nil, errNotPlaylist
	}
}

func decodeMedia(base string, body []byte) (*mediaPlaylist, error) {
	playlist, kind, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errNotPlaylist, err)
	}
	if kind != m3u8.MEDIA {
		return nil, fmt.Errorf("%w: expected a media playlist", errNotPlaylist)
	}
	return mediaOf(base, playlist.(*m3u8.MediaPlaylist))
}

func levelsOf(base string, master *m3u8.MasterPlaylist) ([]engine.Level, error) {
	var levels []engine.Level
	for _, variant := range master.Variants {
		if variant == nil || variant.Iframe || variant.URI == "" {
			continue
		}

		uri, err := resolve(base, variant.URI)
		if err != nil {
			return nil, err
		}

		width, height := parseResolution(variant.Resolution)
		levels = append(levels, engine.Level{
			Bitrate: int(variant.Bandwidth),
			Width:   width,
			Height:  height,
			URI:     uri,
		})
	}

	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: master playlist has no variants", errNotPlaylist)
	}

	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Bitrate < levels[j].Bitrate })
	return levels, nil
}

func mediaOf(base string, playlist *m3u8.MediaPlaylist) (*mediaPlaylist, error) {
	if encrypted(playlist.Key) {
		return nil, errEncrypted
	}

	media := &mediaPlaylist{
		target: playlist.TargetDuration,
		closed: playlist.Closed,
	}

	mapping := playlist.Map
	start := 0.0
	for i, seg := range playlist.Segments {
		if seg == nil {
			break
		}
		if encrypted(seg.Key) {
			return nil, errEncrypted
		}
		if mapping == nil && seg.Map != nil {
			mapping = seg.Map
		}

		uri, err := resolve(base, seg.URI)
		if err != nil {
			return nil, err
		}

		media.segments = append(media.segments, segment{
			sn:       int(playlist.SeqNo) + i,
			uri:      uri,
			rng:      byteRange{limit: seg.Limit, offset: seg.Offset},
			start:    start,
			duration: seg.Duration,
		})
		start += seg.Duration
	}

	if len(media.segments) == 0 {
		return nil, errEmpty
	}

	if mapping != nil && mapping.URI != "" {
		uri, err := resolve(base, mapping.URI)
		if err != nil {
			return nil, err
		}
		media.init = &initSection{uri: uri, rng: byteRange{limit: mapping.Limit, offset: mapping.Offset}}
	}

	return media, nil
}

// encode renders the playlist the origin serves: same sequence numbers and durations, segment
// URIs pointing back at the origin.
func (p *mediaPlaylist) encode() ([]byte, error) {
	out, err := m3u8.NewMediaPlaylist(0, uint(len(p.segments)))
	if err != nil {
		return nil, err
	}

	out.SeqNo = uint64(p.segments[0].sn)
	if p.init != nil {
		out.SetDefaultMap("init", 0, 0)
	}

	for _, seg := range p.segments {
		if err := out.Append("seg/"+strconv.Itoa(seg.sn), seg.duration, ""); err != nil {
			return nil, err
		}
	}

	if p.target > out.TargetDuration {
		out.TargetDuration = p.target
	}
	if p.closed {
		out.MediaType = m3u8.VOD
		out.Close()
	}

	return out.Encode().Bytes(), nil
}

func encrypted(key *m3u8.Key) bool {
	return key != nil && key.Method != "" && !strings.EqualFold(key.Method, "NONE")
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", ref, err)
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

// parseResolution reads a RESOLUTION attribute such as 1080x1920.
func parseResolution(resolution string) (width, height int) {
	w, h, ok := strings.Cut(strings.ToLower(resolution), "x")
	if !ok {
		return 0, 0
	}
	width, _ = strconv.Atoi(w)
	height, _ = strconv.Atoi(h)
	return width, height
}
