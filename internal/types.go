package internal

import (
	"sjsage522/listingwatcher/helpers"
	"sjsage522/listingwatcher/services/notifier"
	"sjsage522/listingwatcher/services/publisher"
	"sjsage522/listingwatcher/services/store"
)

// Dependencies holds all service dependencies shared by topic runs
type Dependencies struct {
	Fetcher  helpers.PageFetcher
	Store    store.SeenStore
	Flag     store.Flag
	Notifier notifier.Notifier
	// Publisher is optional
	Publisher publisher.Publisher
}
