package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_DecodesElements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("data"), "[out:json]")

		w.Write([]byte(`{"elements": [
			{"type": "node", "id": 1, "lat": 6.92, "lon": 79.86, "tags": {"amenity": "hospital", "name": "General Hospital"}},
			{"type": "way", "id": 2, "center": {"lat": 6.93, "lon": 79.87}, "tags": {"highway": "trunk"}}
		]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	elems, err := c.Query(context.Background(), "[out:json];node(around:100,6.92,79.86);out;")
	require.NoError(t, err)
	require.Len(t, elems, 2)

	lat, lon, ok := elems[0].Position()
	assert.True(t, ok)
	assert.Equal(t, 6.92, lat)
	assert.Equal(t, 79.86, lon)
	assert.Equal(t, "General Hospital", elems[0].Tags["name"])

	lat, lon, ok = elems[1].Position()
	assert.True(t, ok)
	assert.Equal(t, 6.93, lat)
	assert.Equal(t, 79.87, lon)
}

func TestQuery_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	_, err := c.Query(context.Background(), "[out:json];out;")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestQuery_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	_, err := c.Query(context.Background(), "[out:json];out;")
	assert.Error(t, err)
}

func TestNewHTTPClient_Defaults(t *testing.T) {
	c := NewHTTPClient("", 0)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, 20*time.Second, c.httpc.Timeout)
}

func TestPosition_NoCoordinates(t *testing.T) {
	_, _, ok := Element{Type: "relation"}.Position()
	assert.False(t, ok)
}
