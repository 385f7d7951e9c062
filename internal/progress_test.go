package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSilentUIManager(t *testing.T) {
	ui := NewSilentUIManager()
	assert.IsType(t, SilentProgressBar{}, ui.NewProgressBar(3, "x"))
	assert.IsType(t, SilentProgressBar{}, ui.NewSpinner("x"))
}

func TestUIManagerOutput(t *testing.T) {
	var buf bytes.Buffer
	ui := &StandardUIManager{verbose: true, out: &buf}
	ui.Verbose("step %d\n", 1)
	ui.Printf("done %s\n", "ok")
	assert.Equal(t, "step 1\ndone ok\n", buf.String())

	buf.Reset()
	quiet := &StandardUIManager{verbose: true, quiet: true, out: &buf}
	quiet.Verbose("hidden\n")
	quiet.Println("hidden")
	assert.Empty(t, buf.String())

	// not a terminal: no live bars
	assert.IsType(t, SilentProgressBar{}, ui.NewProgressBar(3, "x"))
}

func TestLiveProgressBar(t *testing.T) {
	var buf bytes.Buffer
	ui := &StandardUIManager{out: &buf, live: true}
	bar := ui.NewProgressBar(2, "Reorganizing transcript")
	assert.IsType(t, &VisibleProgressBar{}, bar)
	bar.Advance()
	bar.Advance()
	bar.Finish()
	assert.Contains(t, buf.String(), "Reorganizing transcript")
}
