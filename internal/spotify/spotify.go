// Package spotify adapts the Spotify Web API to the catalog and playlist
// sink interfaces the build pipeline consumes. Authentication uses a
// long-lived refresh token; access tokens are refreshed automatically by the
// oauth2 transport.
package spotify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Client wraps an authenticated Spotify session for one user.
type Client struct {
	api    *spotifyapi.Client
	userID string
	market string
}

// Credentials holds the OAuth application and user credentials.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// New authenticates against Spotify and resolves the current user.
func New(ctx context.Context, creds Credentials) (*Client, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, fmt.Errorf("spotify credentials not configured")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(creds.ClientID),
		spotifyauth.WithClientSecret(creds.ClientSecret),
	)
	// Expired access token forces a refresh on first use.
	token := &oauth2.Token{
		RefreshToken: creds.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour),
	}
	api := spotifyapi.New(auth.Client(ctx, token))

	user, err := api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("spotify authentication failed: %w", err)
	}
	log.Printf("Authenticated as Spotify user: %s", user.DisplayName)

	return &Client{api: api, userID: user.ID, market: "US"}, nil
}

// SearchArtist returns the catalog ID of the best-matching artist, or ""
// when no artist matches.
func (c *Client) SearchArtist(ctx context.Context, name string) (string, error) {
	result, err := c.api.Search(ctx, name, spotifyapi.SearchTypeArtist, spotifyapi.Limit(1))
	if err != nil {
		return "", fmt.Errorf("searching for %q: %w", name, err)
	}
	if result.Artists == nil || len(result.Artists.Artists) == 0 {
		return "", nil
	}
	return string(result.Artists.Artists[0].ID), nil
}

// TopTracks returns the artist's top track IDs.
func (c *Client) TopTracks(ctx context.Context, artistID string) ([]string, error) {
	tracks, err := c.api.GetArtistsTopTracks(ctx, spotifyapi.ID(artistID), c.market)
	if err != nil {
		return nil, fmt.Errorf("getting top tracks for %s: %w", artistID, err)
	}
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, string(t.ID))
	}
	return ids, nil
}

// Create makes a new public playlist for the authenticated user.
func (c *Client) Create(ctx context.Context, name, description string) (string, error) {
	pl, err := c.api.CreatePlaylistForUser(ctx, c.userID, name, description, true, false)
	if err != nil {
		return "", fmt.Errorf("creating playlist: %w", err)
	}
	return string(pl.ID), nil
}

// AddTracks appends a batch of tracks to a playlist. Callers keep batches at
// or under 100 tracks, the API's per-call limit.
func (c *Client) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	ids := make([]spotifyapi.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotifyapi.ID(id)
	}
	if _, err := c.api.AddTracksToPlaylist(ctx, spotifyapi.ID(playlistID), ids...); err != nil {
		return fmt.Errorf("adding %d tracks: %w", len(ids), err)
	}
	return nil
}

// PublicURL returns the public web URL of a playlist.
func (c *Client) PublicURL(playlistID string) string {
	return "https://open.spotify.com/playlist/" + playlistID
}

// Unfollow removes a playlist from the authenticated user's library, which
// is how the API deletes user-created playlists.
func (c *Client) Unfollow(ctx context.Context, playlistID string) error {
	if err := c.api.UnfollowPlaylist(ctx, spotifyapi.ID(playlistID)); err != nil {
		return fmt.Errorf("unfollowing playlist %s: %w", playlistID, err)
	}
	return nil
}

// TestPlaylist is a test-marked playlist in the user's library.
type TestPlaylist struct {
	ID        string
	Name      string
	CreatedAt time.Time // zero when the description carries no timestamp
}

// ListTestPlaylists returns the user's playlists whose names carry the given
// test marker prefix, with creation times recovered from their descriptions
// where present.
func (c *Client) ListTestPlaylists(ctx context.Context, marker string) ([]TestPlaylist, error) {
	page, err := c.api.CurrentUsersPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing playlists: %w", err)
	}

	var found []TestPlaylist
	for {
		for _, pl := range page.Playlists {
			if !strings.HasPrefix(pl.Name, marker) {
				continue
			}
			tp := TestPlaylist{ID: string(pl.ID), Name: pl.Name}
			if full, err := c.api.GetPlaylist(ctx, pl.ID); err == nil {
				tp.CreatedAt = parseCreatedAt(full.Description)
			}
			found = append(found, tp)
		}
		if err := c.api.NextPage(ctx, page); err != nil {
			if err == spotifyapi.ErrNoMorePages {
				break
			}
			return nil, fmt.Errorf("listing playlists: %w", err)
		}
	}
	return found, nil
}

// parseCreatedAt extracts the "(Created: ...)" timestamp a test-mode build
// appends to the playlist description.
func parseCreatedAt(description string) time.Time {
	const marker = "(Created: "
	idx := strings.LastIndex(description, marker)
	if idx < 0 {
		return time.Time{}
	}
	rest := description[idx+len(marker):]
	end := strings.Index(rest, ")")
	if end < 0 {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02 15:04:05", rest[:end])
	if err != nil {
		return time.Time{}
	}
	return t
}
