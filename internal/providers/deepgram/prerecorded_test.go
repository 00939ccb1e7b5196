package deepgram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"novasight/internal/domain"
)

func TestPrerecordedTranscribe(t *testing.T) {
	t.Parallel()

	var gotAuth, gotType, gotQuery string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/listen" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotQuery = r.URL.RawQuery
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":" nhận diện khuôn mặt "}]}]}}`))
	}))
	defer srv.Close()

	tr := NewPrerecordedTranscriber(Config{APIKey: "key", APIBaseURL: srv.URL + "/v1", SmartFormat: true}, time.Second)
	got, err := tr.Transcribe(context.Background(), domain.AudioClip{Data: []byte("m4a"), ContentType: "audio/m4a"})
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if got != "nhận diện khuôn mặt" {
		t.Fatalf("unexpected transcript: %q", got)
	}
	if gotAuth != "Token key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotType != "audio/m4a" {
		t.Fatalf("unexpected content type: %q", gotType)
	}
	if gotQuery != "language=vi&model=nova-2&smart_format=true" {
		t.Fatalf("unexpected query: %q", gotQuery)
	}
	if string(gotBody) != "m4a" {
		t.Fatalf("unexpected body: %q", gotBody)
	}
}

func TestPrerecordedTranscribeFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"err_code":"INVALID_AUTH","err_msg":"Invalid credentials."}`))
		}},
		{"plain_error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
		}},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not-json"))
		}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			tr := NewPrerecordedTranscriber(Config{APIKey: "key", APIBaseURL: srv.URL}, time.Second)
			if _, err := tr.Transcribe(context.Background(), domain.AudioClip{Data: []byte("x")}); err == nil {
				t.Fatalf("expected error; got nil")
			}
		})
	}
}

func TestPrerecordedTranscribeRequiresKeyAndAudio(t *testing.T) {
	t.Parallel()

	tr := NewPrerecordedTranscriber(Config{}, 0)
	if _, err := tr.Transcribe(context.Background(), domain.AudioClip{Data: []byte("x")}); err == nil {
		t.Fatalf("expected missing key error")
	}

	tr = NewPrerecordedTranscriber(Config{APIKey: "key"}, 0)
	if _, err := tr.Transcribe(context.Background(), domain.AudioClip{}); err == nil {
		t.Fatalf("expected empty clip error")
	}
}
