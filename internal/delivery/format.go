package delivery

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"workshop_notifier/internal/model"
)

const (
	embedColor    = 3447003
	itemURLFormat = "https://steamcommunity.com/sharedfiles/filedetails/?id=%d"

	descriptionLimit = 200
	thumbnailSize    = 84
)

// bracketed matches square-bracket and parenthesized segments, which carry
// BBCode and markup noise in workshop descriptions.
var bracketed = regexp.MustCompile(`[\(\[].*?[\)\]]`)

// Payload is the webhook request body.
type Payload struct {
	Embeds []Embed `json:"embeds"`
}

// Embed is a single rich embed in a webhook payload.
type Embed struct {
	Title       string          `json:"title"`
	Type        string          `json:"type"`
	URL         string          `json:"url"`
	Description string          `json:"description"`
	Color       int             `json:"color"`
	Timestamp   string          `json:"timestamp"`
	Author      *EmbedAuthor    `json:"author,omitempty"`
	Thumbnail   *EmbedThumbnail `json:"thumbnail,omitempty"`
	Footer      *EmbedFooter    `json:"footer,omitempty"`
}

// EmbedAuthor names the item's creator.
type EmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	IconURL string `json:"icon_url"`
}

// EmbedThumbnail is the item's preview image.
type EmbedThumbnail struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// EmbedFooter is the optional "New <app> item" line.
type EmbedFooter struct {
	Text string `json:"text"`
}

// BuildPayload formats an item as a webhook payload. appName may be empty,
// in which case the footer is omitted.
func BuildPayload(item model.Item, author model.Author, appName string) Payload {
	e := Embed{
		Title:       item.Title,
		Type:        "rich",
		URL:         fmt.Sprintf(itemURLFormat, item.ID),
		Description: CleanDescription(item.Description),
		Color:       embedColor,
		Timestamp:   item.CreatedAt.UTC().Format(time.RFC3339),
		Author: &EmbedAuthor{
			Name:    author.Name,
			URL:     author.ProfileURL,
			IconURL: author.AvatarURL,
		},
	}
	if item.PreviewURL != "" {
		e.Thumbnail = &EmbedThumbnail{
			URL:    item.PreviewURL,
			Height: thumbnailSize,
			Width:  thumbnailSize,
		}
	}
	if appName != "" {
		e.Footer = &EmbedFooter{Text: fmt.Sprintf("New %s item", appName)}
	}
	return Payload{Embeds: []Embed{e}}
}

// CleanDescription truncates a raw workshop description for display: first
// 200 runes, line breaks flattened, bracketed markup stripped, ellipsis
// appended.
func CleanDescription(desc string) string {
	runes := []rune(desc)
	if len(runes) > descriptionLimit {
		runes = runes[:descriptionLimit]
	}
	s := strings.ReplaceAll(string(runes), "\r\n", " ")
	s = bracketed.ReplaceAllString(s, "")
	return s + "…"
}
