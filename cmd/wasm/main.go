//go:build js && wasm

package main

import (
	"fmt"
	"math"
	"syscall/js"

	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/fingerprint"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorTooShort
	ErrorNoFingerprint
)

// downmix must match the policy the index was built with.
const downmix = audio.LeftChannel

var comparator *fingerprint.Comparator

// readAudio converts a JS array of floats in [-1, 1] into canonical mono
// samples ready for fingerprinting.
func readAudio(arr, rate, channels js.Value) ([]int16, error) {
	if arr.Type() != js.TypeObject {
		return nil, fmt.Errorf("audioArray must be an Array or Float32Array")
	}
	if rate.Type() != js.TypeNumber || channels.Type() != js.TypeNumber {
		return nil, fmt.Errorf("sampleRate and channels must be numbers")
	}

	format := audio.Format{SampleRate: rate.Int(), Channels: channels.Int()}
	if !format.Valid() {
		return nil, fmt.Errorf("invalid format: %d Hz, %d channels", format.SampleRate, format.Channels)
	}

	n := arr.Length()
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		v := arr.Index(i)
		if v.Type() != js.TypeNumber {
			return nil, fmt.Errorf("audioArray element %d is not a number", i)
		}
		samples[i] = int16(math.Max(-32768, math.Min(32767, math.Round(v.Float()*32767))))
	}

	buf := audio.Buffer{Format: format, Data: audio.SamplesToBytes(samples)}
	return audio.Prepare(buf, fingerprint.SampleRate, downmix), nil
}

// generateFingerprint(audioArray, sampleRate, channels) returns
// {error: number, data: string} where data is the comma separated
// fingerprint accepted by /api/search-fingerprint.
func generateFingerprint(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return makeResponse(ErrorInvalidArgs, "Expected 3 arguments: audioArray, sampleRate, channels")
	}
	samples, err := readAudio(args[0], args[1], args[2])
	if err != nil {
		return makeResponse(ErrorInvalidArgs, err.Error())
	}
	if len(samples) < fingerprint.MinSamples {
		return makeResponse(ErrorTooShort, "At least one second of audio is required")
	}

	fp := fingerprint.Extract(samples)
	if len(fp) == 0 {
		return makeResponse(ErrorNoFingerprint, "No landmarks found (audio may be silent)")
	}
	return makeResponse(ErrorNone, fp.String())
}

// compareAudio(a, b, sampleRate, channels) returns {error: number, data: number}
// with the similarity of the two clips in [0, 1].
func compareAudio(this js.Value, args []js.Value) any {
	if len(args) < 4 {
		return makeResponse(ErrorInvalidArgs, "Expected 4 arguments: audioA, audioB, sampleRate, channels")
	}
	a, err := readAudio(args[0], args[2], args[3])
	if err != nil {
		return makeResponse(ErrorInvalidArgs, err.Error())
	}
	b, err := readAudio(args[1], args[2], args[3])
	if err != nil {
		return makeResponse(ErrorInvalidArgs, err.Error())
	}
	return makeResponse(ErrorNone, comparator.Compare(a, b))
}

func makeResponse(code int, data any) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", code)
	result.Set("data", data)
	return result
}

func main() {
	console := js.Global().Get("console")

	var err error
	comparator, err = fingerprint.NewComparator(fingerprint.SampleRate)
	if err != nil {
		console.Call("error", err.Error())
		return
	}

	js.Global().Set("generateFingerprint", js.FuncOf(generateFingerprint))
	js.Global().Set("compareAudio", js.FuncOf(compareAudio))

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
	}
	console.Call("log", "TuneTrigger WASM module ready")

	select {}
}
