package models

const (
	SpotifyRouteNow    = "spotify-now"
	SpotifyRouteRecent = "spotify-recent"
	SpotifyRouteTop    = "spotify-top"
	AuthRouteLogin     = "auth-login"
	AuthRouteCallback  = "auth-callback"

	MwSessionKey = "session"
)

type TimeRange string

const (
	TimeRangeShort  TimeRange = "short_term"
	TimeRangeMedium TimeRange = "medium_term"
	TimeRangeLong   TimeRange = "long_term"
)

func (t TimeRange) Valid() bool {
	switch t {
	case TimeRangeShort, TimeRangeMedium, TimeRangeLong:
		return true
	}
	return false
}

type TopItemType string

const (
	TopTracks  TopItemType = "tracks"
	TopArtists TopItemType = "artists"
)
