package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanHTML_StripsNoise(t *testing.T) {
	raw := `<html><head>
		<title>Checkout</title>
		<meta name="description" content="Finish your order">
		<style>body { color: red; }</style>
		<script>alert("hi")</script>
	</head><body>
		<noscript>enable js</noscript>
		<div id="cart"><p>2 items</p></div>
		<svg><circle r="5"/></svg>
	</body></html>`

	page, err := cleanHTML(raw, DefaultContentLength)
	require.NoError(t, err)

	assert.Equal(t, "Checkout", page.Title)
	assert.Equal(t, "Finish your order", page.Description)
	assert.False(t, page.Truncated)

	assert.Contains(t, page.HTML, `<div id="cart">`)
	assert.Contains(t, page.HTML, "2 items")
	assert.NotContains(t, page.HTML, "alert")
	assert.NotContains(t, page.HTML, "color: red")
	assert.NotContains(t, page.HTML, "enable js")
	assert.NotContains(t, page.HTML, "svg")
}

func TestCleanHTML_KeepsTargetingAttributes(t *testing.T) {
	raw := `<body>
		<a href="/next" target="_blank" onclick="track()">Next</a>
		<input name="email" type="text" placeholder="you@example.com" style="width:100%">
		<button type="submit" data-testid="buy" aria-label="Buy now" onmouseover="x()">Buy</button>
	</body>`

	page, err := cleanHTML(raw, DefaultContentLength)
	require.NoError(t, err)

	assert.Contains(t, page.HTML, `href="/next"`)
	assert.Contains(t, page.HTML, `name="email"`)
	assert.Contains(t, page.HTML, `placeholder="you@example.com"`)
	assert.Contains(t, page.HTML, `data-testid="buy"`)
	assert.Contains(t, page.HTML, `aria-label="Buy now"`)
	assert.NotContains(t, page.HTML, "onclick")
	assert.NotContains(t, page.HTML, "onmouseover")
	assert.NotContains(t, page.HTML, "style=")
}

func TestCleanHTML_Truncates(t *testing.T) {
	raw := "<body><p>" + strings.Repeat("x", 500) + "</p></body>"

	page, err := cleanHTML(raw, 100)
	require.NoError(t, err)

	assert.True(t, page.Truncated)
	assert.Contains(t, page.HTML, "...")
	assert.Less(t, len(page.HTML), 300)
}

func TestCleanHTML_VoidElements(t *testing.T) {
	raw := `<body><img src="/logo.png" alt="logo"><br><p>after</p></body>`

	page, err := cleanHTML(raw, DefaultContentLength)
	require.NoError(t, err)

	assert.Contains(t, page.HTML, `<img src="/logo.png" alt="logo">`)
	assert.NotContains(t, page.HTML, "</img>")
	assert.NotContains(t, page.HTML, "</br>")
}

func TestCleanHTML_BlockLayout(t *testing.T) {
	raw := `<body><div>first</div><div>second</div></body>`

	page, err := cleanHTML(raw, DefaultContentLength)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(page.HTML), "\n")
	assert.GreaterOrEqual(t, len(lines), 2)
}
