package service

import "time"

const (
	DefaultEntryEmoji               = "🎉"
	DefaultRefreshInterval          = 60 * time.Second // countdown edit interval
	DefaultResolveRetries           = 3                // reactor fetch attempts at expiry
	DefaultMaxConcurrentResolutions = 10
	DefaultRetryMin                 = 500 * time.Millisecond
	DefaultRetryMax                 = 10 * time.Second
	persistTimeout                  = 5 * time.Second
	shutdownPersistTimeout          = 10 * time.Second

	announcementColor = 0xF1C40F // gold
	endedColor        = 0x95A5A6 // grey
)
