package models

import "time"

// Influencer is a matched (channel, video) pair for a task. The triple
// (task_id, channel_id, video_id) is unique.
type Influencer struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement;column:id" json:"-"`
	TaskID        string    `gorm:"column:task_id;size:36;not null;uniqueIndex:idx_influencers_natural_key,priority:1" json:"taskId"`
	ChannelID     string    `gorm:"column:channel_id;not null;uniqueIndex:idx_influencers_natural_key,priority:2" json:"channelId"`
	ChannelTitle  string    `gorm:"column:channel_title" json:"channelTitle"`
	ChannelURL    string    `gorm:"column:channel_url" json:"channelUrl"`
	VideoID       string    `gorm:"column:video_id;not null;uniqueIndex:idx_influencers_natural_key,priority:3" json:"videoId"`
	VideoTitle    string    `gorm:"column:video_title" json:"videoTitle"`
	VideoURL      string    `gorm:"column:video_url" json:"videoUrl"`
	Subscribers   int64     `gorm:"column:subscribers;not null" json:"subscribers"`
	Views         int64     `gorm:"column:views;not null" json:"views"`
	SearchKeyword string    `gorm:"column:search_keyword" json:"searchKeyword,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at;not null" json:"createdAt"`
}

func (Influencer) TableName() string {
	return "influencers"
}

// All returns the models managed by the schema, in dependency order
func All() []interface{} {
	return []interface{}{&Task{}, &Keyword{}, &Influencer{}}
}
