package guest

// Source is implemented by every guest. Start runs once when the host loads
// the module.
type Source interface {
	Start() error
}

// Searcher answers get_search_list. An empty query searches by filters
// alone.
type Searcher interface {
	GetSearchList(query string, page int, filters []any) (any, error)
}

// ContentUpdater answers get_content_update.
type ContentUpdater interface {
	GetContentUpdate(content any, needsDetails, needsChapters bool) (any, error)
}

// PageLister answers get_page_list.
type PageLister interface {
	GetPageList(content, chapter any) (any, error)
}

// HomeProvider answers get_home.
type HomeProvider interface {
	GetHome() (any, error)
}

// ListingProvider answers get_listing.
type ListingProvider interface {
	GetListing(listing any, page int) (any, error)
}

// DynamicFiltersProvider answers get_dynamic_filters.
type DynamicFiltersProvider interface {
	GetDynamicFilters() (any, error)
}

// DynamicSettingsProvider answers get_dynamic_settings.
type DynamicSettingsProvider interface {
	GetDynamicSettings() (any, error)
}

// DynamicListingsProvider answers get_dynamic_listings.
type DynamicListingsProvider interface {
	GetDynamicListings() (any, error)
}

// ImageRequestProvider answers get_image_request with the handle of a net
// request it built for url.
type ImageRequestProvider interface {
	GetImageRequest(url string, context any) (int32, error)
}

// DeepLinkHandler answers handle_deep_link.
type DeepLinkHandler interface {
	HandleDeepLink(url string) (any, error)
}

// BasicLoginHandler answers handle_basic_login.
type BasicLoginHandler interface {
	HandleBasicLogin(key, username, password string) (any, error)
}

// WebLoginHandler answers handle_web_login.
type WebLoginHandler interface {
	HandleWebLogin(key string, cookies map[string]string) (any, error)
}

// NotificationHandler answers handle_notification.
type NotificationHandler interface {
	HandleNotification(name string) error
}

// MigrationHandler answers handle_migration. chapterID is empty when only
// the content moved.
type MigrationHandler interface {
	HandleMigration(contentID, chapterID string) (any, error)
}
