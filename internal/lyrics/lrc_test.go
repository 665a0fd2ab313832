package lyrics

import (
	"reflect"
	"testing"
)

func TestParseLRC(t *testing.T) {
	src := "[ar:Queen]\n[ti:Bohemian Rhapsody]\n" +
		"[00:04.00]Is this just fantasy?\r\n" +
		"[00:00.00]Is this the real life?\n" +
		"[00:08.50][00:30.25]Caught in a landslide\n" +
		"no timestamp here\n" +
		"[00:12.00]\n"

	got := ParseLRC(src)
	want := []Line{
		{Time: 0, Text: "Is this the real life?"},
		{Time: 4, Text: "Is this just fantasy?"},
		{Time: 8.5, Text: "Caught in a landslide"},
		{Time: 12, Text: ""},
		{Time: 30.25, Text: "Caught in a landslide"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseLRC:\n got %+v\nwant %+v", got, want)
	}
}

func TestParseLRCTimestampForms(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"[01:02]x", 62},
		{"[01:02.5]x", 62.5},
		{"[01:02.50]x", 62.5},
		{"[01:02.125]x", 62.125},
		{"[1:02:50]x", 62.5},
		{"[100:00.00]x", 6000},
	}
	for _, tt := range tests {
		lines := ParseLRC(tt.in)
		if len(lines) != 1 || lines[0].Time != tt.want {
			t.Errorf("ParseLRC(%q) = %+v, want time %v", tt.in, lines, tt.want)
		}
	}
}

func TestParseLRCEnhancedWords(t *testing.T) {
	src := "[00:00.00]<00:00.00>Is <00:00.25>this <00:00.50>real\n[00:02.00]next line"
	lines := ParseLRC(src)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Text != "Is this real" {
		t.Errorf("text = %q", lines[0].Text)
	}
	want := []Word{
		{Word: "Is", StartTime: 0, EndTime: 0.25},
		{Word: "this", StartTime: 0.25, EndTime: 0.5},
		{Word: "real", StartTime: 0.5, EndTime: 2},
	}
	if !reflect.DeepEqual(lines[0].Words, want) {
		t.Errorf("words:\n got %+v\nwant %+v", lines[0].Words, want)
	}
	if lines[1].Words != nil {
		t.Errorf("plain line should have no words, got %+v", lines[1].Words)
	}
}

func TestParseLRCEmpty(t *testing.T) {
	for _, src := range []string{"", "[ar:Nobody]\njust text"} {
		got := ParseLRC(src)
		if got == nil || len(got) != 0 {
			t.Errorf("ParseLRC(%q) = %#v, want empty non-nil slice", src, got)
		}
	}
}

func TestPlainLines(t *testing.T) {
	got := PlainLines("Is this the real life?\n\n  Is this just fantasy?  \r\nCaught")
	want := []Line{
		{Text: "Is this the real life?"},
		{Text: "Is this just fantasy?"},
		{Text: "Caught"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PlainLines = %+v", got)
	}
	if got := PlainLines(""); got == nil || len(got) != 0 {
		t.Errorf("PlainLines(\"\") = %#v", got)
	}
}
