package guest

import (
	"fmt"
	"sync"

	"github.com/reglet-dev/sourcehost/domain/entities"
	"github.com/reglet-dev/sourcehost/wireformat"
)

// Handler runs one capability with decoded arguments.
type Handler func(args []any) (any, error)

type entry struct {
	handle Handler
	arity  int
}

// Table maps capabilities to the handlers of one source. It is built once;
// dispatch does no type probing.
type Table struct {
	source  Source
	entries map[entities.Capability]entry
	caps    entities.CapabilitySet
}

var (
	registeredMu sync.Mutex
	registered   *Table
)

// Register builds the table for src and makes it the target of the module's
// exports. Call it from an init function.
func Register(src Source) *Table {
	t := NewTable(src)
	registeredMu.Lock()
	registered = t
	registeredMu.Unlock()
	return t
}

func current() *Table {
	registeredMu.Lock()
	defer registeredMu.Unlock()
	return registered
}

// NewTable queries src for each capability interface once.
func NewTable(src Source) *Table {
	t := &Table{source: src, entries: make(map[entities.Capability]entry)}

	if s, ok := src.(Searcher); ok {
		t.add(entities.CapSearch, 3, func(a []any) (any, error) {
			query, err := optionalString(a, 0)
			if err != nil {
				return nil, err
			}
			page, err := intArg(a, 1)
			if err != nil {
				return nil, err
			}
			filters, err := arrayArg(a, 2)
			if err != nil {
				return nil, err
			}
			return s.GetSearchList(query, page, filters)
		})
	}
	if s, ok := src.(ContentUpdater); ok {
		t.add(entities.CapContentUpdate, 3, func(a []any) (any, error) {
			details, err := boolArg(a, 1)
			if err != nil {
				return nil, err
			}
			chapters, err := boolArg(a, 2)
			if err != nil {
				return nil, err
			}
			return s.GetContentUpdate(a[0], details, chapters)
		})
	}
	if s, ok := src.(PageLister); ok {
		t.add(entities.CapPageList, 2, func(a []any) (any, error) {
			return s.GetPageList(a[0], a[1])
		})
	}
	if s, ok := src.(HomeProvider); ok {
		t.add(entities.CapHome, 0, func([]any) (any, error) { return s.GetHome() })
	}
	if s, ok := src.(ListingProvider); ok {
		t.add(entities.CapListing, 2, func(a []any) (any, error) {
			page, err := intArg(a, 1)
			if err != nil {
				return nil, err
			}
			return s.GetListing(a[0], page)
		})
	}
	if s, ok := src.(DynamicFiltersProvider); ok {
		t.add(entities.CapDynamicFilters, 0, func([]any) (any, error) { return s.GetDynamicFilters() })
	}
	if s, ok := src.(DynamicSettingsProvider); ok {
		t.add(entities.CapDynamicSettings, 0, func([]any) (any, error) { return s.GetDynamicSettings() })
	}
	if s, ok := src.(DynamicListingsProvider); ok {
		t.add(entities.CapDynamicListings, 0, func([]any) (any, error) { return s.GetDynamicListings() })
	}
	if s, ok := src.(ImageRequestProvider); ok {
		t.add(entities.CapImageRequest, 2, func(a []any) (any, error) {
			url, err := stringArg(a, 0)
			if err != nil {
				return nil, err
			}
			h, err := s.GetImageRequest(url, a[1])
			if err != nil {
				return nil, err
			}
			return int64(h), nil
		})
	}
	if s, ok := src.(DeepLinkHandler); ok {
		t.add(entities.CapDeepLink, 1, func(a []any) (any, error) {
			url, err := stringArg(a, 0)
			if err != nil {
				return nil, err
			}
			return s.HandleDeepLink(url)
		})
	}
	if s, ok := src.(BasicLoginHandler); ok {
		t.add(entities.CapBasicLogin, 3, func(a []any) (any, error) {
			var creds [3]string
			for i := range creds {
				v, err := stringArg(a, i)
				if err != nil {
					return nil, err
				}
				creds[i] = v
			}
			return s.HandleBasicLogin(creds[0], creds[1], creds[2])
		})
	}
	if s, ok := src.(WebLoginHandler); ok {
		t.add(entities.CapWebLogin, 2, func(a []any) (any, error) {
			key, err := stringArg(a, 0)
			if err != nil {
				return nil, err
			}
			cookies, err := stringMapArg(a, 1)
			if err != nil {
				return nil, err
			}
			return s.HandleWebLogin(key, cookies)
		})
	}
	if s, ok := src.(NotificationHandler); ok {
		t.add(entities.CapNotification, 1, func(a []any) (any, error) {
			name, err := stringArg(a, 0)
			if err != nil {
				return nil, err
			}
			return nil, s.HandleNotification(name)
		})
	}
	if s, ok := src.(MigrationHandler); ok {
		t.add(entities.CapMigration, 2, func(a []any) (any, error) {
			contentID, err := stringArg(a, 0)
			if err != nil {
				return nil, err
			}
			chapterID, err := optionalString(a, 1)
			if err != nil {
				return nil, err
			}
			return s.HandleMigration(contentID, chapterID)
		})
	}
	return t
}

func (t *Table) add(c entities.Capability, arity int, h Handler) {
	t.entries[c] = entry{handle: h, arity: arity}
	t.caps = t.caps.With(c)
}

// Capabilities returns the set the source implements. The module's
// capabilities export returns it as a bitmask.
func (t *Table) Capabilities() entities.CapabilitySet {
	return t.caps
}

// Start runs the source's initializer.
func (t *Table) Start() error {
	return t.source.Start()
}

// Dispatch runs capability c and encodes its outcome as an Encoded Buffer:
// the value on success, the error branch otherwise.
func (t *Table) Dispatch(c entities.Capability, args []any) []byte {
	e, ok := t.entries[c]
	if !ok {
		return wireformat.EncodeError(fmt.Sprintf("%s is not implemented", c.Export()))
	}
	if len(args) != e.arity {
		return wireformat.EncodeError(fmt.Sprintf("%s takes %d arguments, got %d", c.Export(), e.arity, len(args)))
	}
	return EncodeResult(e.handle(args))
}

// EncodeResult encodes err as the error branch, or v as a success.
func EncodeResult(v any, err error) []byte {
	return wireformat.EncodeResult(v, err)
}
