// Package loggen produces synthetic nginx access-log lines for exercising
// the pipeline end to end.
package loggen

import (
	"fmt"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ips = []string{
		"192.168.1.100", "192.168.1.101", "192.168.1.102", "10.0.0.50",
		"203.0.113.1", "198.51.100.42", "172.16.0.10", "192.0.2.1",
	}

	methods = []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"}

	paths = []string{
		"/", "/index.html", "/api/users", "/api/posts", "/static/style.css",
		"/images/logo.png", "/api/auth/login", "/api/data", "/admin",
		"/api/health", "/docs", "/favicon.ico", "/api/metrics",
	}

	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
		"curl/7.68.0",
		"PostmanRuntime/7.28.4",
	}

	referers = []string{"-", "https://google.com", "https://example.com", "https://github.com"}

	statusCodes   = []int{200, 404, 500, 403, 301}
	statusWeights = []float64{0.85, 0.05, 0.05, 0.03, 0.02}
)

// Generator emits random access-log lines with a realistic status-code
// mix: mostly 200s, a sprinkling of errors and redirects.
type Generator struct {
	rng      *rand.Rand
	statuses distuv.Categorical
}

// New creates a generator seeded for reproducible output.
func New(seed int64) *Generator {
	return &Generator{
		rng:      rand.New(rand.NewSource(seed)),
		statuses: distuv.NewCategorical(statusWeights, nil),
	}
}

// Line returns one formatted access-log line.
func (g *Generator) Line() string {
	status := statusCodes[int(g.statuses.Rand())]

	var size int
	if status == 200 {
		size = 100 + g.rng.Intn(9901)
	} else {
		size = 50 + g.rng.Intn(451)
	}

	timestamp := time.Now().Format("02/Jan/2006:15:04:05 -0700")

	return fmt.Sprintf(`%s - - [%s] "%s %s HTTP/1.1" %d %d "%s" "%s"`,
		g.pick(ips),
		timestamp,
		g.pick(methods),
		g.pick(paths),
		status,
		size,
		g.pick(referers),
		g.pick(userAgents),
	)
}

func (g *Generator) pick(options []string) string {
	return options[g.rng.Intn(len(options))]
}
