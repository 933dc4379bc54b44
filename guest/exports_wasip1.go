//go:build wasip1

package guest

import (
	"github.com/reglet-dev/sourcehost/domain/entities"
	"github.com/reglet-dev/sourcehost/wireformat"
)

//go:wasmexport start
func start() {
	t := current()
	if t == nil {
		return
	}
	if err := t.Start(); err != nil {
		Print("start failed: " + err.Error())
		panic(err)
	}
}

//go:wasmexport capabilities
func capabilities() int32 {
	t := current()
	if t == nil {
		return 0
	}
	return int32(t.Capabilities()) //nolint:gosec // G115: capability bits fit in 14 bits
}

// call decodes the argument handles, dispatches to the registered source and
// leaks the encoded result.
func call(c entities.Capability, handles ...int32) int32 {
	t := current()
	if t == nil {
		return leak(wireformat.EncodeError("no source registered"))
	}
	args := make([]any, len(handles))
	for i, h := range handles {
		v, err := ReadValue(h)
		if err != nil {
			return leak(wireformat.EncodeError(err.Error()))
		}
		args[i] = v
	}
	return leak(t.Dispatch(c, args))
}

//go:wasmexport get_search_list
func getSearchList(query, page, filters int32) int32 {
	return call(entities.CapSearch, query, page, filters)
}

//go:wasmexport get_content_update
func getContentUpdate(content, needsDetails, needsChapters int32) int32 {
	return call(entities.CapContentUpdate, content, needsDetails, needsChapters)
}

//go:wasmexport get_page_list
func getPageList(content, chapter int32) int32 {
	return call(entities.CapPageList, content, chapter)
}

//go:wasmexport get_home
func getHome() int32 {
	return call(entities.CapHome)
}

//go:wasmexport get_listing
func getListing(listing, page int32) int32 {
	return call(entities.CapListing, listing, page)
}

//go:wasmexport get_dynamic_filters
func getDynamicFilters() int32 {
	return call(entities.CapDynamicFilters)
}

//go:wasmexport get_dynamic_settings
func getDynamicSettings() int32 {
	return call(entities.CapDynamicSettings)
}

//go:wasmexport get_dynamic_listings
func getDynamicListings() int32 {
	return call(entities.CapDynamicListings)
}

//go:wasmexport get_image_request
func getImageRequest(url, context int32) int32 {
	return call(entities.CapImageRequest, url, context)
}

//go:wasmexport handle_deep_link
func handleDeepLink(url int32) int32 {
	return call(entities.CapDeepLink, url)
}

//go:wasmexport handle_basic_login
func handleBasicLogin(key, username, password int32) int32 {
	return call(entities.CapBasicLogin, key, username, password)
}

//go:wasmexport handle_web_login
func handleWebLogin(key, cookies int32) int32 {
	return call(entities.CapWebLogin, key, cookies)
}

//go:wasmexport handle_notification
func handleNotification(name int32) int32 {
	return call(entities.CapNotification, name)
}

//go:wasmexport handle_migration
func handleMigration(contentID, chapterID int32) int32 {
	return call(entities.CapMigration, contentID, chapterID)
}
