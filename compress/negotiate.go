package compress

import "strings"

// negotiationOrder is the preference order when a client's
// Accept-Encoding names more than one algorithm this bucket enables:
// brotli compresses smallest, gzip is the most broadly supported,
// deflate is last-resort.
var negotiationOrder = []Algorithm{Brotli, Gzip, Deflate}

// Negotiate picks the best algorithm from acceptEncoding that r
// enables. It returns ok=false when compression is disabled, the
// header is absent, or no accepted algorithm is enabled.
func Negotiate(acceptEncoding string, r Resolved) (Algorithm, bool) {

	if !r.Enabled || acceptEncoding == "" {
		return "", false
	}

	accepted := parseAcceptEncoding(acceptEncoding)

	for _, algo := range negotiationOrder {
		if !accepted[algo] {
			continue
		}
		cfg, ok := r.Algorithms[algo]
		if !ok || !cfg.Enabled {
			continue
		}
		return algo, true
	}

	return "", false
}

func parseAcceptEncoding(header string) map[Algorithm]bool {

	accepted := make(map[Algorithm]bool, 3)
	for _, tok := range strings.Split(header, ",") {
		name := strings.TrimSpace(strings.SplitN(strings.TrimSpace(tok), ";", 2)[0])
		switch strings.ToLower(name) {
		case "br", "brotli":
			accepted[Brotli] = true
		case "gzip":
			accepted[Gzip] = true
		case "deflate":
			accepted[Deflate] = true
		case "*":
			accepted[Brotli] = true
			accepted[Gzip] = true
			accepted[Deflate] = true
		}
	}
	return accepted
}
