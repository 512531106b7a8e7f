package packets

import (
	"time"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// RESPONSES FOR /api/tv/schedule/*

// PlaylistEntry is what a player needs to render one item. Dangling items are
// left out of the playlist.
type PlaylistEntry struct {
	ItemID   string `json:"item_id"`
	AssetID  string `json:"asset_id"`
	URI      string `json:"uri"`
	Mimetype string `json:"mimetype"`
	Duration int    `json:"duration"`
	Volume   *int   `json:"volume"`
	Mute     bool   `json:"mute"`
}

type PlayerSlot struct {
	ID       string          `json:"slot_id"`
	Name     string          `json:"name"`
	NoLoop   bool            `json:"no_loop"`
	Playlist []PlaylistEntry `json:"playlist"`
}

type PlayerStatusResponse struct {
	ScheduleEnabled bool        `json:"schedule_enabled"`
	CurrentSlot     *PlayerSlot `json:"current_slot"`
	NextChangeAt    *time.Time  `json:"next_change_at"`
	UsingDefault    bool        `json:"using_default"`
}

func NewPlayerStatusResponse(st model.ScheduleStatus) PlayerStatusResponse {
	out := PlayerStatusResponse{
		ScheduleEnabled: st.Enabled,
		NextChangeAt:    st.NextChangeAt,
		UsingDefault:    st.UsingDefault,
	}
	if s := st.CurrentSlot; s != nil {
		slot := PlayerSlot{ID: s.ID, Name: s.Name, NoLoop: s.NoLoop, Playlist: []PlaylistEntry{}}
		for _, it := range s.Items {
			if it.Asset == nil || it.Dangling {
				continue
			}
			entry := PlaylistEntry{
				ItemID:   it.ID,
				AssetID:  it.AssetID,
				URI:      it.Asset.URI,
				Mimetype: it.Asset.Mimetype,
				Volume:   it.Volume,
				Mute:     it.Mute,
			}
			if d := it.EffectiveDuration(); d != nil {
				entry.Duration = *d
			}
			slot.Playlist = append(slot.Playlist, entry)
		}
		out.CurrentSlot = &slot
	}
	return out
}
