package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetQuietMode(false)
	})
	return &buf
}

func TestNonTerminalOutputIsPlain(t *testing.T) {
	buf := capture(t)

	PrintInfo("Target", "natgeo")
	PrintError("Scrape failed", "timeout")

	assert.Equal(t, "Target: natgeo\nScrape failed: timeout\n", buf.String())
}

func TestColorCanBeForced(t *testing.T) {
	buf := capture(t)
	SetColor(true)

	PrintSuccess("done")

	assert.Equal(t, "\033[32mdone\033[0m\n", buf.String())
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := capture(t)
	SetQuietMode(true)

	PrintInfo("Target", "natgeo")
	PrintWarning("slow")
	PrintError("failed")

	assert.Equal(t, "failed\n", buf.String())
}

func TestPrintTableAlignsLabels(t *testing.T) {
	buf := capture(t)

	PrintTable("Profile", []Field{
		{Label: "Username", Value: "natgeo"},
		{Label: "Followers", Value: 1000},
	})

	assert.Equal(t, "Profile\n  Username   natgeo\n  Followers  1000\n", buf.String())
}
