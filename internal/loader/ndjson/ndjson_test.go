package ndjson

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func collect(t *testing.T, input string) ([]Record, error) {
	t.Helper()
	var got []Record
	err := Stream(context.Background(), strings.NewReader(input), func(r Record) error {
		got = append(got, r)
		return nil
	})
	return got, err
}

func TestStream_InputShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "", 0},
		{"single object", `{"song_id":"S1","duration":218.9}`, 1},
		{"jsonl", "{\"a\":1}\n{\"a\":2}\n{\"a\":3}\n", 3},
		{"concatenated", `{"a":1}{"a":2}`, 2},
		{"root array", `[{"a":1},null,{"a":2}]`, 2},
		{"array then trailing jsonl", "[{\"a\":1}]\n{\"a\":2}", 2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := collect(t, tt.input)
			if err != nil {
				t.Fatalf("Stream: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("records=%d, want %d", len(got), tt.want)
			}
			for i, r := range got {
				if r.Index != i+1 {
					t.Fatalf("record %d has Index=%d", i, r.Index)
				}
			}
		})
	}
}

func TestStream_NumbersStayJSONNumber(t *testing.T) {
	t.Parallel()

	got, err := collect(t, `{"ts":1541187600000,"length":295.2}`)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	ts, ok := got[0].Fields["ts"].(json.Number)
	if !ok || ts.String() != "1541187600000" {
		t.Fatalf("ts=%#v, want json.Number(1541187600000)", got[0].Fields["ts"])
	}
}

func TestStream_MalformedRecordReportsPosition(t *testing.T) {
	t.Parallel()

	got, err := collect(t, "{\"a\":1}\n{\"a\":\n")
	if err == nil {
		t.Fatalf("expected error for truncated record")
	}
	if !strings.Contains(err.Error(), "record 2") {
		t.Fatalf("error should name record 2: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("records before failure=%d, want 1", len(got))
	}
}

func TestStream_RejectsScalarRootAndNonObjectElements(t *testing.T) {
	t.Parallel()

	if _, err := collect(t, `42`); err == nil {
		t.Fatalf("expected error for scalar root")
	}
	if _, err := collect(t, `[{"a":1}, 7]`); err == nil {
		t.Fatalf("expected error for non-object array element")
	}
}

func TestStream_EmitErrorStops(t *testing.T) {
	t.Parallel()

	stop := errors.New("stop")
	calls := 0
	err := Stream(context.Background(), strings.NewReader("{}\n{}\n{}"), func(Record) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err=%v calls=%d, want stop after 1", err, calls)
	}
}

func TestParsePath(t *testing.T) {
	t.Parallel()

	rec := map[string]any{
		"artist":    "Coldplay",
		"user":      map[string]any{"id": "7"},
		"tags":      []any{"a", "b"},
		"it's":      "quoted",
		"dotted":    map[string]any{"x": map[string]any{"y": 1}},
		"firstName": "Ann",
	}

	tests := []struct {
		expr string
		want any
		ok   bool
	}{
		{"$['artist']", "Coldplay", true},
		{`$["firstName"]`, "Ann", true},
		{"$.user.id", "7", true},
		{"$['user']['id']", "7", true},
		{"$['tags'][1]", "b", true},
		{"$['tags'][5]", nil, false},
		{"$.dotted.x.y", 1, true},
		{"$['missing']", nil, false},
		{"$['artist']['deeper']", nil, false},
	}
	for _, tt := range tests {
		p, err := ParsePath(tt.expr)
		if err != nil {
			t.Fatalf("ParsePath(%q): %v", tt.expr, err)
		}
		got, ok := p.Lookup(rec)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Lookup(%q) = (%v, %v), want (%v, %v)", tt.expr, got, ok, tt.want, tt.ok)
		}
	}

	for _, bad := range []string{"artist", "$", "$[", "$['a'", "$[x]", "$..a"} {
		if _, err := ParsePath(bad); err == nil {
			t.Errorf("ParsePath(%q) err=nil, want error", bad)
		}
	}
}

func TestReadManifest(t *testing.T) {
	t.Parallel()

	m, err := ReadManifest(strings.NewReader(`{"jsonpaths": ["$['artist']", "$['auth']", "$['userId']"]}`))
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(m.Paths) != 3 || m.Paths[2].String() != "$['userId']" {
		t.Fatalf("paths=%v", m.Paths)
	}

	if _, err := ReadManifest(strings.NewReader(`{"jsonpaths": []}`)); err == nil {
		t.Fatalf("expected error for empty manifest")
	}
}
