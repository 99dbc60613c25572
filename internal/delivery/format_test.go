package delivery

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"workshop_notifier/internal/model"
)

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text",
			in:   "A simple mod.",
			want: "A simple mod.…",
		},
		{
			name: "line breaks flattened",
			in:   "line one\r\nline two",
			want: "line one line two…",
		},
		{
			name: "bbcode stripped",
			in:   "[b]Bold claim[/b] and (an aside) remain",
			want: " and  remain…",
		},
		{
			name: "long text truncated",
			in:   strings.Repeat("a", 300),
			want: strings.Repeat("a", 200) + "…",
		},
		{
			name: "empty",
			in:   "",
			want: "…",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, CleanDescription(tt.in)); diff != "" {
				t.Errorf("CleanDescription mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildPayload(t *testing.T) {
	item := model.Item{
		ID:          3006,
		AppID:       107410,
		Title:       "Night Ops Compass",
		Description: "A compass overhaul.",
		CreatedAt:   time.Date(2024, 4, 25, 16, 0, 0, 0, time.UTC),
		PreviewURL:  "https://images.example.com/3006.png",
		AuthorID:    "76561198000000001",
	}
	author := model.Author{
		ID:         "76561198000000001",
		Name:       "mapmaker",
		ProfileURL: "https://steamcommunity.com/id/mapmaker/",
		AvatarURL:  "https://avatars.example.com/mapmaker.jpg",
	}

	got := BuildPayload(item, author, "Arma 3")

	want := Payload{Embeds: []Embed{{
		Title:       "Night Ops Compass",
		Type:        "rich",
		URL:         "https://steamcommunity.com/sharedfiles/filedetails/?id=3006",
		Description: "A compass overhaul.…",
		Color:       3447003,
		Timestamp:   "2024-04-25T16:00:00Z",
		Author: &EmbedAuthor{
			Name:    "mapmaker",
			URL:     "https://steamcommunity.com/id/mapmaker/",
			IconURL: "https://avatars.example.com/mapmaker.jpg",
		},
		Thumbnail: &EmbedThumbnail{
			URL:    "https://images.example.com/3006.png",
			Height: 84,
			Width:  84,
		},
		Footer: &EmbedFooter{Text: "New Arma 3 item"},
	}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPayloadOptionalParts(t *testing.T) {
	item := model.Item{ID: 1, Title: "Bare", CreatedAt: time.Unix(0, 0)}

	got := BuildPayload(item, model.Author{}, "")

	if got.Embeds[0].Footer != nil {
		t.Error("footer must be omitted without an app name")
	}
	if got.Embeds[0].Thumbnail != nil {
		t.Error("thumbnail must be omitted without a preview url")
	}
}
