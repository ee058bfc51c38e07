package models

type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

type Followers struct {
	Total int `json:"total"`
}

type SpotifyArtist struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	ExternalURLs ExternalURLs   `json:"external_urls"`
	Images       []SpotifyImage `json:"images,omitempty"`
	Genres       []string       `json:"genres,omitempty"`
	Popularity   *int           `json:"popularity,omitempty"`
	Followers    *Followers     `json:"followers,omitempty"`
}

type SpotifyAlbum struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Images       []SpotifyImage `json:"images"`
	ExternalURLs ExternalURLs   `json:"external_urls"`
	ReleaseDate  string         `json:"release_date"`
}

type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMs   int             `json:"duration_ms"`
	ExternalURLs ExternalURLs    `json:"external_urls"`
	PreviewURL   *string         `json:"preview_url"`
}

type TopTracksResponse struct {
	Items  []SpotifyTrack `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type TopArtistsResponse struct {
	Items  []SpotifyArtist `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type RecentlyPlayedItem struct {
	Track    SpotifyTrack `json:"track"`
	PlayedAt string       `json:"played_at"`
}

type Cursors struct {
	After  string `json:"after"`
	Before string `json:"before"`
}

type RecentlyPlayedResponse struct {
	Items   []RecentlyPlayedItem `json:"items"`
	Cursors *Cursors             `json:"cursors,omitempty"`
	Limit   int                  `json:"limit"`
}

type CurrentlyPlayingResponse struct {
	IsPlaying            bool          `json:"is_playing"`
	Item                 *SpotifyTrack `json:"item"`
	ProgressMs           int           `json:"progress_ms"`
	Timestamp            int64         `json:"timestamp"`
	CurrentlyPlayingType string        `json:"currently_playing_type"`
}

// NothingPlaying is returned when the provider reports no active playback.
type NothingPlaying struct {
	IsPlaying bool `json:"is_playing"`
}

// SpotifyProfile is the subset of GET /me used at login.
type SpotifyProfile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}
