//go:build !js && !wasm

package main

import (
	"slices"
	"testing"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		args           []string
		wantPositional []string
		wantFlags      []string
	}{
		{nil, nil, nil},
		{[]string{"a.wav"}, []string{"a.wav"}, nil},
		{[]string{"a.wav", "--name", "x"}, []string{"a.wav"}, []string{"--name", "x"}},
		{[]string{"--out", "dir", "a.wav"}, nil, []string{"--out", "dir", "a.wav"}},
		{[]string{"a.wav", "b.wav", "-v"}, []string{"a.wav", "b.wav"}, []string{"-v"}},
	}
	for _, tt := range tests {
		pos, flags := splitArgs(tt.args)
		if !slices.Equal(pos, tt.wantPositional) || !slices.Equal(flags, tt.wantFlags) {
			t.Errorf("splitArgs(%q) = %q, %q; want %q, %q", tt.args, pos, flags, tt.wantPositional, tt.wantFlags)
		}
	}
}
