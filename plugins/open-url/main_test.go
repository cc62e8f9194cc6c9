package main

import (
	"reflect"
	"testing"
)

func TestParseLink(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		schemes []string
		want    string
		wantErr bool
	}{
		{"https", "https://example.com/item?id=7", nil, "https://example.com/item?id=7", false},
		{"trimmed", "  http://example.com  ", nil, "http://example.com", false},
		{"plain text", "4006381333931", nil, "", true},
		{"no host", "https:///path", nil, "", true},
		{"scheme not allowed", "javascript:alert(1)", nil, "", true},
		{"custom scheme", "mailto:someone@example.com", []string{"mailto"}, "mailto:someone@example.com", false},
		{"custom list excludes https", "https://example.com", []string{"mailto"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := parseLink(tt.payload, tt.schemes)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLink() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && u.String() != tt.want {
				t.Errorf("parseLink() = %q, want %q", u.String(), tt.want)
			}
		})
	}
}

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos     string
		wantName string
		wantArgs []string
	}{
		{"darwin", "open", []string{"https://example.com"}},
		{"linux", "xdg-open", []string{"https://example.com"}},
		{"windows", "rundll32", []string{"url.dll,FileProtocolHandler", "https://example.com"}},
	}
	for _, tt := range tests {
		name, args := openCommand(tt.goos, "https://example.com")
		if name != tt.wantName || !reflect.DeepEqual(args, tt.wantArgs) {
			t.Errorf("openCommand(%s) = %s %v", tt.goos, name, args)
		}
	}
}

func TestActionHandlers(t *testing.T) {
	for _, action := range []string{"open", "copy"} {
		if _, ok := actionHandlers[action]; !ok {
			t.Errorf("missing handler for %q", action)
		}
	}
}
