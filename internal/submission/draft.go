package submission

import (
	"strings"

	"github.com/m3rciful/tunerover/core/telegram/state"
	"github.com/m3rciful/tunerover/internal/catalog"
)

// Dialogue steps. Idle is state.StateIdle.
const (
	StateAwaitingTitle         state.State = "awaiting_title"
	StateAwaitingArtist        state.State = "awaiting_artist"
	StateAwaitingLabel         state.State = "awaiting_label"
	StateAwaitingYear          state.State = "awaiting_year"
	StateAwaitingCover         state.State = "awaiting_cover"
	StateAwaitingItunesLink    state.State = "awaiting_itunes_link"
	StateAwaitingStreamingLink state.State = "awaiting_streaming_link"
)

// Draft is the partially collected album of one user.
type Draft struct {
	Title         string  `json:"title,omitempty"`
	Artist        string  `json:"artist,omitempty"`
	Label         string  `json:"label,omitempty"`
	Year          int     `json:"year,omitempty"`
	CoverRef      string  `json:"cover_ref,omitempty"`
	ItunesLink    *string `json:"itunes_link,omitempty"`
	StreamingLink *string `json:"streaming_link,omitempty"`
}

func (d Draft) album() catalog.NewAlbum {
	return catalog.NewAlbum{
		Title:         d.Title,
		Artist:        d.Artist,
		Label:         d.Label,
		ReleaseYear:   d.Year,
		CoverRef:      d.CoverRef,
		ItunesLink:    d.ItunesLink,
		StreamingLink: d.StreamingLink,
	}
}

var noneSentinels = map[string]struct{}{
	"none": {},
	"no":   {},
	"-":    {},
	"нет":  {},
}

// ParseOptionalLink maps the "none" sentinels (case-insensitive) to nil and
// anything else to the trimmed text.
func ParseOptionalLink(text string) *string {
	v := strings.TrimSpace(text)
	if _, ok := noneSentinels[strings.ToLower(v)]; ok {
		return nil
	}
	return &v
}
