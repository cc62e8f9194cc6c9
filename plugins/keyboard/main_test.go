package main

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestBuildTypeScript(t *testing.T) {
	tests := []struct {
		name string
		text string
		cfg  TypeConfig
		want string
	}{
		{
			name: "plain",
			text: "4006381333931",
			want: "tell application \"System Events\"\nkeystroke \"4006381333931\"\nend tell",
		},
		{
			name: "escaped with enter",
			text: `say "hi" \o/`,
			cfg:  TypeConfig{Enter: true},
			want: "tell application \"System Events\"\nkeystroke \"say \\\"hi\\\" \\\\o/\"\nkey code 36\nend tell",
		},
		{
			name: "tab then enter",
			text: "x",
			cfg:  TypeConfig{Tab: true, Enter: true},
			want: "tell application \"System Events\"\nkeystroke \"x\"\nkey code 48\nkey code 36\nend tell",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildTypeScript(tt.text, tt.cfg); got != tt.want {
				t.Errorf("buildTypeScript() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestXdotoolArgs(t *testing.T) {
	got := xdotoolArgs("-n 5", TypeConfig{Enter: true})
	want := [][]string{
		{"type", "--clearmodifiers", "--", "-n 5"},
		{"key", "Return"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("xdotoolArgs() = %v, want %v", got, want)
	}
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    TypeConfig
		wantErr bool
	}{
		{"empty", "", TypeConfig{}, false},
		{"null", "null", TypeConfig{}, false},
		{"full", `{"prefix":">","suffix":"<","enter":true}`, TypeConfig{Prefix: ">", Suffix: "<", Enter: true}, false},
		{"invalid", `{"enter":"yes"}`, TypeConfig{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseConfig(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
