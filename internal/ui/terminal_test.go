package ui

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestShouldUseColorEnv(t *testing.T) {
	// Under go test stdout is not a terminal, so only the env decides.
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"no env", nil, false},
		{"NO_COLOR", map[string]string{"NO_COLOR": "1"}, false},
		{"CLICOLOR_FORCE", map[string]string{"CLICOLOR_FORCE": "1"}, true},
		{"CLICOLOR_FORCE zero", map[string]string{"CLICOLOR_FORCE": "0"}, false},
		{"CLICOLOR zero", map[string]string{"CLICOLOR": "0"}, false},
		{"NO_COLOR beats force", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"NO_COLOR", "CLICOLOR", "CLICOLOR_FORCE"} {
				t.Setenv(k, tt.env[k])
			}
			if got := ShouldUseColor(); got != tt.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldUseEmojiOff(t *testing.T) {
	t.Setenv("MEALSYNC_NO_EMOJI", "1")
	if ShouldUseEmoji() {
		t.Error("MEALSYNC_NO_EMOJI should turn marks off")
	}
}

func TestMarkFallsBackToASCII(t *testing.T) {
	InitColor(true)
	if got := Mark(TonePass); got != "ok" {
		t.Errorf("Mark(TonePass) = %q, want ok", got)
	}
	if got := Paint(ToneFail, "boom"); got != "boom" {
		t.Errorf("Paint under the ASCII profile = %q", got)
	}
	if got := Heading("sync"); got != "SYNC" {
		t.Errorf("Heading = %q, want SYNC", got)
	}
}

func TestPointsTone(t *testing.T) {
	tests := []struct {
		v    float64
		want Tone
	}{
		{-1, ToneMuted},
		{0, ToneMuted},
		{2, ToneWarn},
		{3, TonePass},
		{40, TonePass},
	}
	for _, tt := range tests {
		if got := PointsTone(tt.v, 3); got != tt.want {
			t.Errorf("PointsTone(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func fakePager(env map[string]string, height int) (*Pager, *bytes.Buffer) {
	var out bytes.Buffer
	return &Pager{
		Out:    &out,
		Getenv: func(k string) string { return env[k] },
		Height: func() int { return height },
	}, &out
}

func TestPagerCommand(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want []string
	}{
		{"default", nil, []string{"less"}},
		{"PAGER", map[string]string{"PAGER": "more"}, []string{"more"}},
		{"own pager wins", map[string]string{"PAGER": "more", "MEALSYNC_PAGER": "most -s"}, []string{"most", "-s"}},
		{"blank ignored", map[string]string{"MEALSYNC_PAGER": "  ", "PAGER": "more"}, []string{"more"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := fakePager(tt.env, 0)
			if got := p.Command(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Command() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPagerWritesDirectly(t *testing.T) {
	long := strings.Repeat("meal\n", 50)
	tests := []struct {
		name   string
		env    map[string]string
		height int
		opts   PagerOptions
	}{
		{"not a terminal", nil, 0, PagerOptions{}},
		{"fits on screen", nil, 80, PagerOptions{}},
		{"--no-pager", nil, 10, PagerOptions{NoPager: true}},
		{"MEALSYNC_NO_PAGER", map[string]string{"MEALSYNC_NO_PAGER": "1"}, 10, PagerOptions{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out := fakePager(tt.env, tt.height)
			if err := p.Page(long, tt.opts); err != nil {
				t.Fatalf("Page: %v", err)
			}
			if out.String() != long {
				t.Errorf("content was not written as is")
			}
		})
	}
}

func TestLineCount(t *testing.T) {
	tests := map[string]int{"": 0, "a": 1, "a\n": 1, "a\nb\nc": 3, "a\nb\n": 2}
	for in, want := range tests {
		if got := lineCount(in); got != want {
			t.Errorf("lineCount(%q) = %d, want %d", in, got, want)
		}
	}
}
