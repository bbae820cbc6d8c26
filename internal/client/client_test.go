package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/syllabus-go/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateContentSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathGenerateContent, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "6", r.FormValue("noOfClasses"))
		assert.Equal(t, "chan-1", r.FormValue("socketId"))

		f, hdr, err := r.FormFile("pdfFile")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "lecture.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.7", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Processing started"}`))
	}))
	defer srv.Close()

	m := metrics.NewCollector()
	c := New(srv.URL, WithToken("secret"), WithMetrics(m))

	resp, err := c.GenerateContent(context.Background(), GenerateRequest{
		File:       strings.NewReader("%PDF-1.7"),
		FileName:   "lecture.pdf",
		ClassCount: 6,
		SocketID:   "chan-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Processing started", resp.Message)

	snap := m.Snapshot()
	require.Len(t, snap.Operations, 1)
	assert.Equal(t, metrics.OpJobSubmit, snap.Operations[0].Op)
}

func TestGenerateContentEmptyAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	resp, err := New(srv.URL).GenerateContent(context.Background(), GenerateRequest{
		File: strings.NewReader("x"), ClassCount: 1, SocketID: "s",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Message)
}

func TestGenerateContentRequiresFile(t *testing.T) {
	_, err := New("http://unused").GenerateContent(context.Background(), GenerateRequest{ClassCount: 1})
	assert.Error(t, err)
}

func TestGenerateContentAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"file too large"}`, http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	m := metrics.NewCollector()
	_, err := New(srv.URL, WithMetrics(m)).GenerateContent(context.Background(), GenerateRequest{
		File: strings.NewReader("x"), ClassCount: 1, SocketID: "s",
	})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "file too large")
	assert.Equal(t, int64(1), m.Snapshot().Operations[0].Failures)
}

func TestLatestSyllabus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, PathLatestSyllabus, r.URL.Path)
		_, _ = w.Write([]byte(`{"syllabus":[
			{"classNo":2,"classTitle":"Intro: More","coreConcepts":["b"],"slides":[]},
			{"classNo":1,"classTitle":"Intro: Basics","coreConcepts":["a"],"slides":[{"title":"S1","imageUrl":"https://x/y.png"}]}
		]}`))
	}))
	defer srv.Close()

	items, err := New(srv.URL+"/").LatestSyllabus(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].ClassNo)
	require.Len(t, items[1].Slides, 1)
	assert.Equal(t, "S1", items[1].Slides[0].Title)
	require.NotNil(t, items[1].Slides[0].ImageURL)
}

func TestLatestSyllabusBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"syllabus": [`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).LatestSyllabus(context.Background())
	assert.ErrorContains(t, err, "unmarshal response")
}

func TestClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL).LatestSyllabus(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
