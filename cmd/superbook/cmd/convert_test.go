package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "book_converted.pdf", defaultOutputPath("book.pdf"))
	assert.Equal(t, "/tmp/scan_converted.PDF", defaultOutputPath("/tmp/scan.PDF"))
}

func TestRootCommandShowsHelp(t *testing.T) {
	root := GetRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--help"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "convert")
}

func TestConvertCommandRegistered(t *testing.T) {
	root := GetRootCommand()
	found := false
	for _, c := range root.Commands() {
		if c.Name() == "convert" {
			found = true
			assert.Contains(t, c.Use, "<input.pdf>")
		}
	}
	assert.True(t, found)
}

func TestConvertFlagDefaults(t *testing.T) {
	flags := convertCmd.Flags()

	dpi, err := flags.GetInt("dpi")
	require.NoError(t, err)
	assert.Equal(t, 300, dpi)

	ocr, err := flags.GetBool("ocr")
	require.NoError(t, err)
	assert.False(t, ocr)

	upscale, err := flags.GetBool("upscale")
	require.NoError(t, err)
	assert.True(t, upscale)

	height, err := flags.GetInt("output-height")
	require.NoError(t, err)
	assert.Equal(t, 3508, height)

	trim, err := flags.GetFloat64("margin-trim")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, trim, 1e-9)
}
