// Package record holds the pipeline's wire types: what the collector emits,
// what a staged batch carries and what the loader writes
package record

import (
	"math"
	"strings"
	"time"

	perr "tubesense/internal/platform/errors"

	"tubesense/internal/core/sentiment"
)

// UnknownCountry is stored when a channel does not declare one
const UnknownCountry = "UNKNOWN"

// Video is one collected video. VideoID is the identity and never changes
type Video struct {
	VideoID        string    `json:"video_id"`
	ChannelID      string    `json:"channel_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Tags           []string  `json:"tags"`
	CategoryID     int       `json:"category_id"`
	Region         string    `json:"region"`
	SearchKeyword  string    `json:"search_keyword"`
	PublishedAt    time.Time `json:"published_at"`
	ViewCount      int64     `json:"view_count"`
	LikeCount      int64     `json:"like_count"`
	CommentCount   int64     `json:"comment_count"`
	EngagementRate float64   `json:"engagement_rate"`
	CollectedAt    time.Time `json:"collected_at"`
}

// Channel is the shared reference row many videos point at
type Channel struct {
	ChannelID       string    `json:"channel_id"`
	Title           string    `json:"title"`
	Country         string    `json:"country"`
	SubscriberCount *int64    `json:"subscriber_count"`
	VideoCount      int64     `json:"video_count"`
	CollectedAt     time.Time `json:"collected_at"`
}

// Item is a classified video together with its channel
type Item struct {
	Video          Video            `json:"video"`
	Channel        Channel          `json:"channel"`
	Classification sentiment.Result `json:"classification"`
}

// Input returns the classifier input for v
func (v Video) Input() sentiment.Input {
	return sentiment.Input{CategoryID: v.CategoryID, Title: v.Title, Description: v.Description, Tags: v.Tags}
}

// EngagementRate is (likes+comments)/views as a percentage rounded to 4 places, 0 without views
func EngagementRate(views, likes, comments int64) float64 {
	if views <= 0 {
		return 0
	}
	r := float64(likes+comments) / float64(views) * 100
	return math.Round(r*1e4) / 1e4
}

// Validate reports a Malformed error when identity fields are missing
func (v Video) Validate() error {
	switch {
	case strings.TrimSpace(v.VideoID) == "":
		return perr.WithField(perr.Malformedf("video without id"), "video_id")
	case strings.TrimSpace(v.ChannelID) == "":
		return perr.WithField(perr.Malformedf("video %s without channel", v.VideoID), "channel_id")
	case v.PublishedAt.IsZero():
		return perr.WithField(perr.Malformedf("video %s without published_at", v.VideoID), "published_at")
	case v.ViewCount < 0 || v.LikeCount < 0 || v.CommentCount < 0:
		return perr.WithField(perr.Malformedf("video %s with negative statistics", v.VideoID), "statistics")
	}
	return nil
}

// Validate checks a staged item: video identity, channel linkage and a consistent verdict
func (it Item) Validate() error {
	if err := it.Video.Validate(); err != nil {
		return err
	}
	if it.Channel.ChannelID != it.Video.ChannelID {
		return perr.WithField(perr.Malformedf("video %s channel mismatch %q != %q",
			it.Video.VideoID, it.Channel.ChannelID, it.Video.ChannelID), "channel_id")
	}
	if !it.Classification.Valid() {
		return perr.WithField(perr.Malformedf("video %s has invalid classification", it.Video.VideoID), "classification")
	}
	return nil
}
