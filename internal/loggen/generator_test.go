package loggen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherdlog/shepherd/internal/domain/parser"
)

func TestLinesAreParseable(t *testing.T) {
	g := New(1)
	p := parser.NewAccessLog()

	for i := 0; i < 500; i++ {
		line := g.Line()
		fields := p.Parse(line)

		require.Contains(t, statusCodes, fields.StatusCode, "line: %s", line)
		assert.Contains(t, ips, fields.ClientIP)
		assert.Contains(t, methods, fields.Method)
		assert.Contains(t, paths, fields.Path)
		assert.Contains(t, userAgents, fields.UserAgent)
		assert.Greater(t, fields.ResponseSize, 0)
	}
}

func TestStatusMixSkewsHealthy(t *testing.T) {
	g := New(42)
	p := parser.NewAccessLog()

	ok := 0
	const n = 2000
	for i := 0; i < n; i++ {
		if p.Parse(g.Line()).StatusCode == 200 {
			ok++
		}
	}

	// Expected share is 85%; allow a generous band.
	assert.Greater(t, ok, n*7/10)
	assert.Less(t, ok, n*95/100)
}

func TestResponseSizeRanges(t *testing.T) {
	g := New(7)
	p := parser.NewAccessLog()

	for i := 0; i < 500; i++ {
		fields := p.Parse(g.Line())
		if fields.StatusCode == 200 {
			assert.GreaterOrEqual(t, fields.ResponseSize, 100)
			assert.LessOrEqual(t, fields.ResponseSize, 10000)
		} else {
			assert.GreaterOrEqual(t, fields.ResponseSize, 50)
			assert.LessOrEqual(t, fields.ResponseSize, 500)
		}
	}
}
