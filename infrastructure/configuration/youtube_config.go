package configuration

import (
	"encoding/json"
	"os"

	youtubeclient "yt-elt/infrastructure/clients/youtube"
)

// tokenFile is where an earlier OAuth consent flow leaves its tokens
const tokenFile = "token.json"

// YouTubeClientConfig converts the loaded configuration into the API client's config.
// Missing OAuth tokens are filled from token.json when that file exists.
func (c *Config) YouTubeClientConfig() *youtubeclient.Config {
	config := &youtubeclient.Config{
		ClientID:       c.YouTube.ClientID,
		ClientSecret:   c.YouTube.ClientSecret,
		RedirectURL:    c.YouTube.RedirectURI,
		AccessToken:    c.YouTube.AccessToken,
		RefreshToken:   c.YouTube.RefreshToken,
		APIKey:         c.YouTube.APIKey,
		Endpoint:       c.YouTube.Endpoint,
		RequestTimeout: c.Extract.RequestTimeout,
	}

	if config.AccessToken == "" || config.RefreshToken == "" {
		if data, err := os.ReadFile(tokenFile); err == nil {
			var tokens struct {
				AccessToken  string `json:"access_token"`
				RefreshToken string `json:"refresh_token"`
			}
			if jsonErr := json.Unmarshal(data, &tokens); jsonErr == nil {
				if config.AccessToken == "" {
					config.AccessToken = tokens.AccessToken
				}
				if config.RefreshToken == "" {
					config.RefreshToken = tokens.RefreshToken
				}
			}
		}
	}
	return config
}
