package memesync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const grumpyCat = `# Grumpy Cat

## Cover

![grumpy](https://example.com/grumpy.jpg "Tardar Sauce")

## Description

A cat with a permanently
unimpressed face.

## Source

Reddit, 2012.
`

func TestParse_Sections(t *testing.T) {
	doc, err := Parse([]byte(grumpyCat), "cats/grumpy-cat", "grumpy cat")
	require.NoError(t, err)

	assert.Equal(t, "cats/grumpy-cat", doc.UID)
	assert.Equal(t, "Grumpy Cat", doc.Name)
	assert.Equal(t, "https://example.com/grumpy.jpg", doc.Cover)
	assert.Equal(t, "A cat with a permanently\nunimpressed face.", doc.Description)
}

func TestParse_Fallbacks(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantName  string
		wantCover string
		wantDesc  string
	}{
		{
			name:      "no title uses file name",
			content:   "## Cover\n![x](https://example.com/a.png)\n",
			wantName:  "doge meme",
			wantCover: "https://example.com/a.png",
		},
		{
			name:      "html image in cover section",
			content:   "# Doge\n\n## Cover\n\n<p><img alt=\"doge\" src=\"https://example.com/doge.png\"></p>\n\n## Description\nwow\n",
			wantName:  "Doge",
			wantCover: "https://example.com/doge.png",
			wantDesc:  "wow",
		},
		{
			name:      "image outside cover section is ignored",
			content:   "# Doge\n![x](https://example.com/top.png)\n## Cover\n![y](https://example.com/cover.png)\n",
			wantName:  "Doge",
			wantCover: "https://example.com/cover.png",
		},
		{
			name:      "windows line endings",
			content:   "# Doge\r\n## Cover\r\n![y](https://example.com/c.png)\r\n## Description\r\nmuch text\r\n",
			wantName:  "Doge",
			wantCover: "https://example.com/c.png",
			wantDesc:  "much text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.content), "doge", "doge meme")
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, doc.Name)
			assert.Equal(t, tt.wantCover, doc.Cover)
			assert.Equal(t, tt.wantDesc, doc.Description)
		})
	}
}

func TestParse_FrontMatterOverrides(t *testing.T) {
	content := `---
uid: classics/doge
name: Doge
cover: https://example.com/fm.png
---
# Shiba

## Cover
![x](https://example.com/body.png)

## Description
Such wow.
`
	doc, err := Parse([]byte(content), "misc/shiba", "shiba")
	require.NoError(t, err)
	assert.Equal(t, "classics/doge", doc.UID)
	assert.Equal(t, "Doge", doc.Name)
	assert.Equal(t, "https://example.com/fm.png", doc.Cover)
	assert.Equal(t, "Such wow.", doc.Description)
}

func TestParse_BadFrontMatter(t *testing.T) {
	_, err := Parse([]byte("---\nname: [unclosed\n---\n# X\n"), "x", "x")
	assert.Error(t, err)
}

func TestParse_MissingCover(t *testing.T) {
	doc, err := Parse([]byte("# Nothing\n\n## Cover\n\nno image here\n"), "nothing", "nothing")
	assert.ErrorIs(t, err, ErrMissingCover)
	require.NotNil(t, doc)
	assert.Equal(t, "Nothing", doc.Name)
}
