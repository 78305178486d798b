package connector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stub struct {
	name      string
	available bool
}

func (s stub) Name() string    { return s.name }
func (s stub) Available() bool { return s.available }
func (s stub) FetchProps(context.Context) (PropBatch, error) {
	return PropBatch{}, nil
}

func TestRegistrySkipsUnavailable(t *testing.T) {
	r := NewRegistry()
	r.AddProps(stub{"A", true}, stub{"B", false}, stub{"C", true})

	got := r.PropConnectors()
	if len(got) != 2 || got[0].Name() != "A" || got[1].Name() != "C" {
		t.Errorf("connectors = %v", got)
	}
	if names := r.Names(); names["B"] || !names["A"] {
		t.Errorf("names = %v", names)
	}
}

func TestParseLine(t *testing.T) {
	tests := map[string]float64{
		"o 250.5":   250.5,
		"U45½":      45.5,
		"Line: 6.5": 6.5,
		"1,234.5":   1234.5,
		"":          0,
		"no line":   0,
	}
	for in, want := range tests {
		if got := ParseLine(in); got != want {
			t.Errorf("ParseLine(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseMetric(t *testing.T) {
	tests := map[string]int{
		"1.2K":  1200,
		"5.7M":  5700000,
		"1,234": 1234,
		"423":   423,
		"":      0,
		"abc":   0,
	}
	for in, want := range tests {
		if got := ParseMetric(in); got != want {
			t.Errorf("ParseMetric(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseOdds(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"+150", 150, true},
		{"-110", -110, true},
		{"−115", -115, true},
		{"EVEN", 100, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseOdds(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseOdds(%q) = %d/%v, want %d/%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "sharpwatch-test" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`{"value": 42}`))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{}`))
		default:
			http.Error(w, "nope", http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(50*time.Millisecond, "sharpwatch-test")
	ctx := context.Background()

	var out struct{ Value int }
	if err := c.GetJSON(ctx, srv.URL+"/ok", nil, &out); err != nil || out.Value != 42 {
		t.Fatalf("ok: %v %+v", err, out)
	}

	var se *StatusError
	if err := c.GetJSON(ctx, srv.URL+"/limited", nil, &out); !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
		t.Errorf("limited: err = %v", err)
	}

	if err := c.GetJSON(ctx, srv.URL+"/slow", nil, &out); err == nil {
		t.Error("slow: expected timeout")
	}
}

func TestPacer(t *testing.T) {
	p := NewPacer(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
		t.Errorf("three waits took %v, want at least ~60ms", elapsed)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := NewPacer(time.Hour).Wait(cancelled); err == nil {
		t.Error("expected error on cancelled context")
	}
}
