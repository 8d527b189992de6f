package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHTML = `<html><body>
<ul>
  <li class="author"><a href="/author/ada-lovelace-12">Ada Lovelace</a></li>
  <li class="author"><a href="/author/alan-turing-7">Alan Turing</a></li>
</ul>
<p class="abstract">  We propose a thing.  <b>bold</b> tail</p>
<a href="/paper/1-x"><b>nested only</b></a>
<a name="anchor-without-href">text</a>
</body></html>`

func mustDoc(t *testing.T, body string) *Document {
	t.Helper()
	doc, err := NewDocument(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

func TestDocument_FindAll_DocumentOrder(t *testing.T) {
	doc := mustDoc(t, sampleHTML)

	authors := doc.FindAll("li.author")
	require.Len(t, authors, 2)

	link, ok := authors[1].FindOne("a")
	require.True(t, ok)
	href, ok := link.Attr("href")
	require.True(t, ok)
	assert.Equal(t, "/author/alan-turing-7", href)
	name, ok := link.FirstText()
	require.True(t, ok)
	assert.Equal(t, "Alan Turing", name)
}

func TestDocument_FindOne_Missing(t *testing.T) {
	doc := mustDoc(t, sampleHTML)

	_, ok := doc.FindOne("div.nothing-here")
	assert.False(t, ok)
	assert.Empty(t, doc.FindAll("div.nothing-here"))
}

func TestNode_FirstText_Verbatim(t *testing.T) {
	doc := mustDoc(t, sampleHTML)

	p, ok := doc.FindOne("p.abstract")
	require.True(t, ok)
	text, ok := p.FirstText()
	require.True(t, ok)
	assert.Equal(t, "  We propose a thing.  ", text)
}

func TestNode_FirstText_NestedOnly(t *testing.T) {
	doc := mustDoc(t, sampleHTML)

	a, ok := doc.FindOne(`a[href="/paper/1-x"]`)
	require.True(t, ok)
	_, ok = a.FirstText()
	assert.False(t, ok, "text inside a child element is not a direct text node")
}

func TestNode_Attr_Missing(t *testing.T) {
	doc := mustDoc(t, sampleHTML)

	a, ok := doc.FindOne("a[name]")
	require.True(t, ok)
	_, ok = a.Attr("href")
	assert.False(t, ok)
}

func TestHostKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"http://papers.nips.cc/book/x", "papers.nips.cc", false},
		{"HTTP://Papers.NIPS.cc:80/paper/1", "papers.nips.cc", false},
		{"https://example.org:443/", "example.org", false},
		{"https://example.org:8443/", "example.org:8443", false},
		{"http://127.0.0.1:54321/a", "127.0.0.1:54321", false},
		{"/relative/path", "", true},
		{"http://[::1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := HostKey(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
