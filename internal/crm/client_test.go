package crm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL + "/v1/leads", Token: "secret", Timeout: time.Second})
	require.NoError(t, err)
	return client
}

func TestFetchPageEnvelope(t *testing.T) {
	requests := make(chan *http.Request, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":1,"nome":"Ana"},{"id":2,"nome":"Bruno"}],"total":2}`))
	})

	table, err := client.FetchPage(context.Background(), 2)
	require.NoError(t, err)
	seen := <-requests
	require.Equal(t, "/v1/leads", seen.URL.Path)
	require.Equal(t, "2", seen.URL.Query().Get("pagina"))
	require.Equal(t, "Bearer secret", seen.Header.Get("Authorization"))
	require.Len(t, table, 2)
	require.Equal(t, []string{"1", "2"}, table.IDs())
	require.Equal(t, "Ana", table[0].Fields["nome"])
}

func TestFetchPageBareList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a"},{"id":"b"},{"id":"c"}]`))
	})

	table, err := client.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, table, 3)
}

func TestFetchPageUnknownShapesAreEmpty(t *testing.T) {
	bodies := []string{
		`{"items":[{"id":1}]}`,
		`{"data":{"id":1}}`,
		`"hello"`,
		`42`,
		`{"data":[]}`,
	}

	for _, body := range bodies {
		body := body
		t.Run(body, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			table, err := client.FetchPage(context.Background(), 1)
			require.NoError(t, err)
			require.Empty(t, table)
		})
	}
}

func TestFetchPageSkipsNonObjectItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":1},"junk",3,null,{"id":2}]}`))
	})

	table, err := client.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, table.IDs())
}

func TestFetchPageStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})

	table, err := client.FetchPage(context.Background(), 1)
	require.Empty(t, table)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, KindStatus, fetchErr.Kind)
	require.Equal(t, http.StatusUnauthorized, fetchErr.StatusCode)
	require.Equal(t, KindStatus, KindOf(err))
}

func TestFetchPageDecodeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[`))
	})

	table, err := client.FetchPage(context.Background(), 1)
	require.Empty(t, table)
	require.Equal(t, KindDecode, KindOf(err))
}

func TestFetchPageTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	table, err := client.FetchPage(context.Background(), 1)
	require.Empty(t, table)
	require.Equal(t, KindTransport, KindOf(err))
}

func TestFetchPageConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.FetchPage(context.Background(), 1)
	require.Equal(t, KindTransport, KindOf(err))
}

func TestFetchPageRejectsInvalidPage(t *testing.T) {
	requests := make(chan struct{}, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests <- struct{}{}
	})

	_, err := client.FetchPage(context.Background(), 0)
	require.Equal(t, KindRequest, KindOf(err))
	require.Empty(t, requests)
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "ftp://example.com"})
	require.Error(t, err)

	client, err := NewClient(Config{})
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL+"?pagina=3", client.pageURL(3))
	require.Equal(t, DefaultTimeout, client.http.Timeout)
}

func TestFetchErrorMessage(t *testing.T) {
	err := &FetchError{Kind: KindStatus, Page: 4, StatusCode: 502}
	require.Equal(t, "crm: page 4: status (HTTP 502)", err.Error())
	require.Equal(t, ErrorKind(""), KindOf(errors.New("other")))
}
