package dataset_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/tgdeck/internal/apierr"
	"github.com/fakeyudi/tgdeck/internal/dataset"
	"github.com/fakeyudi/tgdeck/internal/fakebackend"
	"github.com/fakeyudi/tgdeck/internal/gateway"
	"github.com/fakeyudi/tgdeck/internal/session"
	"github.com/fakeyudi/tgdeck/internal/storage"
)

const channel = "-100123"

func setup(t *testing.T, n int) (*gateway.Gateway, *fakebackend.Server) {
	t.Helper()
	srv := fakebackend.New(t)
	srv.AddUser("ada@example.com", "pw", "Ada")
	msgs := make([]fakebackend.Message, n)
	for i := range msgs {
		sender := int64(i%3 + 1)
		msgs[i] = fakebackend.Message{
			ID:        int64(i + 1),
			MessageID: int64(1000 + i),
			Date:      "2024-03-01T10:00:00",
			SenderID:  &sender,
			Message:   fmt.Sprintf("message %d", i+1),
		}
		if i%5 == 0 {
			msgs[i].MediaType = "MessageMediaPhoto"
		}
		if i == 7 {
			msgs[i].Message = "Rocket launch"
			msgs[i].Username = "nasa"
		}
	}
	srv.SeedMessages(channel, msgs)

	tr := gateway.NewTransport(srv.URL, srv.Client(), nil)
	sess := session.New(storage.NewMemory(), tr, nil)
	require.True(t, sess.Login(context.Background(), "ada@example.com", "pw").Success)
	return gateway.New(tr, sess, nil), srv
}

func TestView_FetchComputesStats(t *testing.T) {
	api, _ := setup(t, 45)
	v := dataset.NewView(api, channel, 0, nil)

	require.NoError(t, v.Fetch(context.Background()))
	assert.Equal(t, dataset.Stats{TotalMessages: 45, MessagesWithMedia: 9, UniqueSenders: 3}, v.Stats())
	assert.False(t, v.Loading())

	st := v.State()
	assert.Equal(t, 1, st.Page)
	assert.Equal(t, 3, st.TotalPages)
	assert.Len(t, st.Items, 20)
	assert.Equal(t, 45, st.Matches)
	assert.Equal(t, 1, st.From)
	assert.Equal(t, 20, st.To)
}

func TestView_FetchFailureKeepsData(t *testing.T) {
	api, srv := setup(t, 5)
	v := dataset.NewView(api, channel, 20, nil)
	require.NoError(t, v.Fetch(context.Background()))

	srv.FailNext(http.MethodGet, "/channel-data/"+channel, http.StatusInternalServerError, "boom")
	require.Error(t, v.Fetch(context.Background()))
	assert.Len(t, v.Messages(), 5)
	assert.Equal(t, "Failed to load channel data", v.Feedback().Error)
	assert.False(t, v.Loading())
}

func TestView_EmptyChannel(t *testing.T) {
	api, _ := setup(t, 0)
	v := dataset.NewView(api, "-1009", 20, nil)
	require.NoError(t, v.Fetch(context.Background()))
	st := v.State()
	assert.Empty(t, st.Items)
	assert.Equal(t, 0, st.TotalPages)
	assert.Equal(t, 1, st.Page)
}

func TestView_SearchResetsPage(t *testing.T) {
	api, _ := setup(t, 45)
	v := dataset.NewView(api, channel, 20, nil)
	require.NoError(t, v.Fetch(context.Background()))

	require.True(t, v.Next())
	page, _ := v.Page()
	assert.Equal(t, 2, page)

	v.Search("ROCKET")
	page, total := v.Page()
	assert.Equal(t, 1, page)
	assert.Equal(t, 1, total)
	items := v.PageItems()
	require.Len(t, items, 1)
	assert.Equal(t, "Rocket launch", items[0].Message)
	assert.Equal(t, 45, v.Stats().TotalMessages, "stats describe the full set")

	v.Search("")
	assert.Len(t, v.Filtered(), 45)
	assert.Equal(t, v.Messages(), v.Filtered())
}

func TestView_NextPrevBoundaries(t *testing.T) {
	api, _ := setup(t, 25)
	v := dataset.NewView(api, channel, 20, nil)
	require.NoError(t, v.Fetch(context.Background()))

	assert.False(t, v.Prev())
	assert.True(t, v.Next())
	assert.False(t, v.Next())
	assert.Len(t, v.PageItems(), 5)
	v.Goto(1)
	assert.Len(t, v.PageItems(), 20)
}

func TestView_ExportCSV(t *testing.T) {
	api, srv := setup(t, 3)
	v := dataset.NewView(api, channel, 20, nil)

	res, err := v.Export(context.Background(), dataset.CSV)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Count(http.MethodGet, "/export-data/"+channel+"/csv"))
	assert.Contains(t, v.Feedback().Success, "CSV")
	assert.Equal(t, "Data exported successfully in CSV format", v.Feedback().Success)
	assert.Equal(t, "exports/-100123_messages.csv", res.Path)
	assert.False(t, v.Exporting())
}

func TestView_ExportFormats(t *testing.T) {
	api, srv := setup(t, 3)
	v := dataset.NewView(api, channel, 20, nil)
	ctx := context.Background()

	_, err := v.Export(ctx, "JSON")
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Count(http.MethodGet, "/export-data/"+channel+"/json"))
	assert.Equal(t, "Data exported successfully in JSON format", v.Feedback().Success)

	_, err = v.Export(ctx, "xml")
	assert.True(t, apierr.Is(err, apierr.KindValidation))
	assert.NotEmpty(t, v.Feedback().Error)

	srv.FailNext(http.MethodGet, "/export-data/"+channel+"/csv", http.StatusInternalServerError, "")
	_, err = v.Export(ctx, dataset.CSV)
	require.Error(t, err)
	assert.Equal(t, "Failed to export data as csv", v.Feedback().Error)
	assert.False(t, v.Exporting())
}

// A fetch that resolves after Close is discarded.
func TestView_CloseDiscardsLateResponse(t *testing.T) {
	api, srv := setup(t, 5)
	v := dataset.NewView(api, channel, 20, nil)
	release := srv.Block(http.MethodGet, "/channel-data/"+channel)

	done := make(chan error, 1)
	go func() { done <- v.Fetch(context.Background()) }()
	require.Eventually(t, v.Loading, 2*time.Second, 5*time.Millisecond)

	v.Close()
	release()
	assert.ErrorIs(t, <-done, dataset.ErrStale)
	assert.Empty(t, v.Messages())
	assert.ErrorIs(t, v.Fetch(context.Background()), dataset.ErrStale)
}

// Of two overlapping fetches only the newer one is applied.
func TestView_NewerFetchWins(t *testing.T) {
	api, srv := setup(t, 5)
	v := dataset.NewView(api, channel, 20, nil)
	path := "/channel-data/" + channel
	release := srv.Block(http.MethodGet, path)

	first := make(chan error, 1)
	go func() { first <- v.Fetch(context.Background()) }()
	require.Eventually(t, func() bool { return srv.Count(http.MethodGet, path) == 1 }, 2*time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- v.Fetch(context.Background()) }()
	require.Eventually(t, func() bool { return srv.Count(http.MethodGet, path) == 2 }, 2*time.Second, 5*time.Millisecond)

	release()
	assert.ErrorIs(t, <-first, dataset.ErrStale)
	assert.NoError(t, <-second)
	assert.Len(t, v.Messages(), 5)
	assert.False(t, v.Loading())
}
