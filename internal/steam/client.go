// Package steam is the HTTP client for the Workshop catalog API: latest
// published items per app, batched item details, author profiles and app
// display names. Calls do not retry; callers treat failures as "no data
// this run".
package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"workshop_notifier/internal/model"
)

const (
	queryFilesURL  = "https://api.steampowered.com/IPublishedFileService/QueryFiles/v1/"
	fileDetailsURL = "https://api.steampowered.com/ISteamRemoteStorage/GetPublishedFileDetails/v1/"
	playersURL     = "https://api.steampowered.com/ISteamUser/GetPlayerSummaries/v2/"
	appDetailsURL  = "https://store.steampowered.com/api/appdetails"

	maxBodySize = 5 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the Workshop catalog API.
type Client struct {
	client HTTPClient
	key    string
	window int
}

// New creates a Client with the given HTTP client, API key and fetch window
// (number of newest items requested per app).
func New(client HTTPClient, key string, window int) *Client {
	return &Client{client: client, key: key, window: window}
}

// LatestItems returns the ids of the newest published items for an app,
// newest first, at most the fetch window.
func (c *Client) LatestItems(ctx context.Context, appID int64) ([]int64, error) {
	q := url.Values{}
	q.Set("key", c.key)
	q.Set("format", "json")
	q.Set("query_type", "1")
	q.Set("page", "1")
	q.Set("numperpage", strconv.Itoa(c.window))
	q.Set("creator_appid", "0")
	q.Set("appid", strconv.FormatInt(appID, 10))
	q.Set("filetype", "0")

	var resp struct {
		Response struct {
			Details []struct {
				PublishedFileID string `json:"publishedfileid"`
			} `json:"publishedfiledetails"`
		} `json:"response"`
	}
	if err := c.getJSON(ctx, queryFilesURL+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("query files for app %d: %w", appID, err)
	}

	ids := make([]int64, 0, len(resp.Response.Details))
	for _, d := range resp.Response.Details {
		id, err := strconv.ParseInt(d.PublishedFileID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ItemDetails fetches full details for a batch of item ids. Items that fail
// to resolve upstream are omitted from the result.
func (c *Client) ItemDetails(ctx context.Context, ids []int64) (map[int64]model.Item, error) {
	if len(ids) == 0 {
		return map[int64]model.Item{}, nil
	}

	form := url.Values{}
	form.Set("key", c.key)
	form.Set("itemcount", strconv.Itoa(len(ids)))
	for i, id := range ids {
		form.Set(fmt.Sprintf("publishedfileids[%d]", i), strconv.FormatInt(id, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fileDetailsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp struct {
		Response struct {
			Result  int `json:"result"`
			Details []struct {
				PublishedFileID string `json:"publishedfileid"`
				Result          int    `json:"result"`
				ConsumerAppID   int64  `json:"consumer_app_id"`
				Title           string `json:"title"`
				Description     string `json:"description"`
				TimeCreated     int64  `json:"time_created"`
				PreviewURL      string `json:"preview_url"`
				Creator         string `json:"creator"`
			} `json:"publishedfiledetails"`
		} `json:"response"`
	}
	if err := c.doJSON(req, &resp); err != nil {
		return nil, fmt.Errorf("fetch item details: %w", err)
	}
	if resp.Response.Result != 1 {
		return nil, fmt.Errorf("fetch item details: upstream result %d", resp.Response.Result)
	}

	items := make(map[int64]model.Item, len(resp.Response.Details))
	for _, d := range resp.Response.Details {
		if d.Result != 1 {
			continue
		}
		id, err := strconv.ParseInt(d.PublishedFileID, 10, 64)
		if err != nil {
			continue
		}
		items[id] = model.Item{
			ID:          id,
			AppID:       d.ConsumerAppID,
			Title:       d.Title,
			Description: d.Description,
			CreatedAt:   time.Unix(d.TimeCreated, 0).UTC(),
			PreviewURL:  d.PreviewURL,
			AuthorID:    d.Creator,
		}
	}
	return items, nil
}

// AuthorProfiles fetches public profiles for a batch of author ids. Unknown
// ids are omitted from the result.
func (c *Client) AuthorProfiles(ctx context.Context, ids []string) (map[string]model.Author, error) {
	if len(ids) == 0 {
		return map[string]model.Author{}, nil
	}

	q := url.Values{}
	q.Set("key", c.key)
	q.Set("steamids", strings.Join(ids, ","))

	var resp struct {
		Response struct {
			Players []struct {
				SteamID     string `json:"steamid"`
				PersonaName string `json:"personaname"`
				ProfileURL  string `json:"profileurl"`
				Avatar      string `json:"avatar"`
			} `json:"players"`
		} `json:"response"`
	}
	if err := c.getJSON(ctx, playersURL+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetch author profiles: %w", err)
	}

	authors := make(map[string]model.Author, len(resp.Response.Players))
	for _, p := range resp.Response.Players {
		authors[p.SteamID] = model.Author{
			ID:         p.SteamID,
			Name:       p.PersonaName,
			ProfileURL: p.ProfileURL,
			AvatarURL:  p.Avatar,
		}
	}
	return authors, nil
}

// AppName resolves an app id to its storefront display name. The second
// return value is false when the storefront does not know the app.
func (c *Client) AppName(ctx context.Context, appID int64) (string, bool, error) {
	key := strconv.FormatInt(appID, 10)

	var resp map[string]struct {
		Success bool `json:"success"`
		Data    struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, appDetailsURL+"?appids="+key, &resp); err != nil {
		return "", false, fmt.Errorf("fetch app details for %d: %w", appID, err)
	}

	entry, ok := resp[key]
	if !ok || !entry.Success || entry.Data.Name == "" {
		return "", false, nil
	}
	return entry.Data.Name, true, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	req.Header.Set("User-Agent", "WorkshopNotifier/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http %s: %w", strings.ToLower(req.Method), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
