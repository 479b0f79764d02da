package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodecFor(t *testing.T) {
	assert.Equal(t, "libmp3lame", codecFor("mp3"))
	assert.Equal(t, "aac", codecFor("aac"))
	assert.Equal(t, "aac", codecFor("m4a"))
	assert.Equal(t, "aac", codecFor("mp4"))
	assert.Equal(t, "libmp3lame", codecFor("ogg"))
}
