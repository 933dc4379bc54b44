package guest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/sourcehost/domain/entities"
	"github.com/reglet-dev/sourcehost/wireformat"
)

type baseSource struct {
	started int
}

func (s *baseSource) Start() error {
	s.started++
	return nil
}

type fullSource struct {
	baseSource
	lastSearch []any
	notified   string
}

func (s *fullSource) GetSearchList(query string, page int, filters []any) (any, error) {
	s.lastSearch = []any{query, page, filters}
	return map[string]any{"entries": []any{"a", "b"}, "has_next_page": page < 2}, nil
}

func (s *fullSource) GetHome() (any, error) {
	return nil, errors.New("home is not available")
}

func (s *fullSource) GetImageRequest(url string, _ any) (int32, error) {
	return 7, nil
}

func (s *fullSource) HandleWebLogin(key string, cookies map[string]string) (any, error) {
	return cookies["session"] != "", nil
}

func (s *fullSource) HandleNotification(name string) error {
	s.notified = name
	return nil
}

func (s *fullSource) HandleMigration(contentID, chapterID string) (any, error) {
	if chapterID == "" {
		return "content:" + contentID, nil
	}
	return "chapter:" + chapterID, nil
}

func decode(t *testing.T, buf []byte) (any, error) {
	t.Helper()
	return wireformat.Decode(buf)
}

func TestNewTable_Capabilities(t *testing.T) {
	assert.Equal(t, entities.CapabilitySet(0), NewTable(&baseSource{}).Capabilities())

	want := entities.NewCapabilitySet(
		entities.CapSearch,
		entities.CapHome,
		entities.CapImageRequest,
		entities.CapWebLogin,
		entities.CapNotification,
		entities.CapMigration,
	)
	assert.Equal(t, want, NewTable(&fullSource{}).Capabilities())
}

func TestTable_Dispatch(t *testing.T) {
	src := &fullSource{}
	table := NewTable(src)

	tests := []struct {
		name    string
		cap     entities.Capability
		args    []any
		want    any
		wantErr string
	}{
		{
			name: "search",
			cap:  entities.CapSearch,
			args: []any{"query", int64(1), []any{"genre"}},
			want: map[string]any{"entries": []any{"a", "b"}, "has_next_page": true},
		},
		{
			name: "search without query",
			cap:  entities.CapSearch,
			args: []any{nil, float64(2), nil},
			want: map[string]any{"entries": []any{"a", "b"}, "has_next_page": false},
		},
		{name: "error branch", cap: entities.CapHome, args: []any{}, wantErr: "home is not available"},
		{name: "image request", cap: entities.CapImageRequest, args: []any{"https://example.com/a.png", nil}, want: int64(7)},
		{
			name: "web login",
			cap:  entities.CapWebLogin,
			args: []any{"login", map[string]any{"session": "abc"}},
			want: true,
		},
		{name: "notification", cap: entities.CapNotification, args: []any{"refresh"}, want: nil},
		{name: "migration", cap: entities.CapMigration, args: []any{"42", nil}, want: "content:42"},
		{name: "migration chapter", cap: entities.CapMigration, args: []any{"42", "7"}, want: "chapter:7"},
		{name: "not implemented", cap: entities.CapListing, args: []any{nil, int64(1)}, wantErr: "get_listing is not implemented"},
		{name: "arity", cap: entities.CapSearch, args: []any{"q"}, wantErr: "get_search_list takes 3 arguments, got 1"},
		{name: "bad page", cap: entities.CapSearch, args: []any{"q", "one", nil}, wantErr: "argument 1: want int, got string"},
		{name: "fractional page", cap: entities.CapSearch, args: []any{"q", 1.5, nil}, wantErr: "argument 1: want int, got float64"},
		{name: "bad cookies", cap: entities.CapWebLogin, args: []any{"login", map[string]any{"n": int64(1)}}, wantErr: "want object of strings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := decode(t, table.Dispatch(tt.cap, tt.args))
			if tt.wantErr != "" {
				var guestErr *wireformat.GuestError
				require.ErrorAs(t, err, &guestErr)
				assert.Contains(t, guestErr.Message, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}

	assert.Equal(t, "refresh", src.notified)
}

func TestTable_SearchArguments(t *testing.T) {
	src := &fullSource{}
	NewTable(src).Dispatch(entities.CapSearch, []any{nil, int64(3), []any{"tag"}})
	assert.Equal(t, []any{"", 3, []any{"tag"}}, src.lastSearch)
}

func TestRegister(t *testing.T) {
	src := &baseSource{}
	table := Register(src)
	assert.Same(t, table, current())

	require.NoError(t, current().Start())
	assert.Equal(t, 1, src.started)
}

func TestEncodeResult(t *testing.T) {
	v, err := decode(t, EncodeResult("ok", nil))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = decode(t, EncodeResult(nil, errors.New("boom")))
	assert.EqualError(t, err, "boom")

	_, err = decode(t, EncodeResult(struct{}{}, nil))
	assert.Error(t, err, "unencodable values become the error branch")
}

func TestStubs(t *testing.T) {
	_, err := ReadValue(1)
	assert.ErrorIs(t, err, ErrNotGuest)
	assert.NoError(t, SendPartial("x"))
}
