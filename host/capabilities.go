package host

import (
	"context"
	"fmt"

	"github.com/reglet-dev/sourcehost/domain/entities"
	domainerrors "github.com/reglet-dev/sourcehost/domain/errors"
	"github.com/reglet-dev/sourcehost/resource"
)

// invoke calls the export behind c, decodes the result and releases it.
// Optional string arguments are passed as nil when empty.
func (p *Plugin) invoke(ctx context.Context, c entities.Capability, args ...any) (any, error) {
	if !p.caps.Has(c) {
		return nil, &domainerrors.CapabilityError{Required: c.Export()}
	}
	lease, err := p.Call(ctx, c.Export(), args...)
	if err != nil {
		return nil, err
	}
	v, err := lease.Value()
	if relErr := lease.Release(ctx); relErr != nil && err == nil {
		err = relErr
	}
	return v, err
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// SearchList runs a search. An empty query searches with filters only.
func (p *Plugin) SearchList(ctx context.Context, query string, page int, filters []any) (any, error) {
	return p.invoke(ctx, entities.CapSearch, optional(query), page, filters)
}

// ContentUpdate refreshes a content entry, optionally with its details and
// its chapter list.
func (p *Plugin) ContentUpdate(ctx context.Context, content any, needsDetails, needsChapters bool) (any, error) {
	return p.invoke(ctx, entities.CapContentUpdate, content, needsDetails, needsChapters)
}

// PageList returns the pages of one chapter.
func (p *Plugin) PageList(ctx context.Context, content, chapter any) (any, error) {
	return p.invoke(ctx, entities.CapPageList, content, chapter)
}

// Home returns the home layout.
func (p *Plugin) Home(ctx context.Context) (any, error) {
	return p.invoke(ctx, entities.CapHome)
}

// Listing returns one page of a listing.
func (p *Plugin) Listing(ctx context.Context, listing any, page int) (any, error) {
	return p.invoke(ctx, entities.CapListing, listing, page)
}

// DynamicFilters returns filters computed by the guest.
func (p *Plugin) DynamicFilters(ctx context.Context) (any, error) {
	return p.invoke(ctx, entities.CapDynamicFilters)
}

// DynamicSettings returns settings computed by the guest.
func (p *Plugin) DynamicSettings(ctx context.Context) (any, error) {
	return p.invoke(ctx, entities.CapDynamicSettings)
}

// DynamicListings returns listings computed by the guest.
func (p *Plugin) DynamicListings(ctx context.Context) (any, error) {
	return p.invoke(ctx, entities.CapDynamicListings)
}

// ImageRequest asks the guest to build the request for an image URL. The
// guest returns the handle of a net request it created; the caller reads it
// through Resources and destroys it when done.
func (p *Plugin) ImageRequest(ctx context.Context, url string, imageContext any) (resource.Handle, error) {
	v, err := p.invoke(ctx, entities.CapImageRequest, url, imageContext)
	if err != nil {
		return -1, err
	}
	h, ok := v.(int64)
	if !ok {
		return -1, fmt.Errorf("%s returned %T, want a request handle", entities.CapImageRequest.Export(), v)
	}
	if kind, ok := p.Resources().Kind(resource.Handle(h)); !ok || kind != resource.KindRequest {
		return -1, fmt.Errorf("%s returned %d, which is not a live request", entities.CapImageRequest.Export(), h)
	}
	return resource.Handle(h), nil
}

// DeepLink resolves a URL to the content it points at.
func (p *Plugin) DeepLink(ctx context.Context, url string) (any, error) {
	return p.invoke(ctx, entities.CapDeepLink, url)
}

// BasicLogin logs in with a username and password for the login setting key.
func (p *Plugin) BasicLogin(ctx context.Context, key, username, password string) (any, error) {
	return p.invoke(ctx, entities.CapBasicLogin, key, username, password)
}

// WebLogin hands the cookies of a web login to the guest.
func (p *Plugin) WebLogin(ctx context.Context, key string, cookies map[string]string) (any, error) {
	return p.invoke(ctx, entities.CapWebLogin, key, cookies)
}

// Notification delivers a named notification.
func (p *Plugin) Notification(ctx context.Context, name string) (any, error) {
	return p.invoke(ctx, entities.CapNotification, name)
}

// Migration maps an old content (and optionally chapter) ID to a new one.
func (p *Plugin) Migration(ctx context.Context, contentID, chapterID string) (any, error) {
	return p.invoke(ctx, entities.CapMigration, contentID, optional(chapterID))
}
