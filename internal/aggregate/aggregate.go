package aggregate

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"pricebench/internal/provider"
)

// Key identifies a provider/product bucket.
type Key struct {
	Provider  string
	ProductID string
}

// Latest is the newest quote per Key.
type Latest struct {
	Provider   string    `json:"provider"`
	ProductID  string    `json:"product_id"`
	Price      float64   `json:"price"`
	Samples    int       `json:"samples"`
	ReceivedAt time.Time `json:"received_at"`
}

// Summary describes a set of quotes.
type Summary struct {
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Cheapest string  `json:"cheapest"`
	Dearest  string  `json:"dearest"`
}

// NormalizeProvider trims a provider name and collapses inner whitespace, so
// "Provider  1 " and "Provider 1" land in the same bucket.
func NormalizeProvider(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// LatestByProvider collapses quotes by (Provider, ProductID) keeping the newest.
// For equal timestamps, later input wins. Zero timestamps are replaced with time.Now().UTC().
// Rows are ordered by provider name with embedded numbers compared numerically
// ("Provider 2" before "Provider 10"), then by product id.
func LatestByProvider(quotes []provider.Quote) []Latest {
	now := time.Now().UTC()
	latest := make(map[Key]Latest, len(quotes))

	for _, q := range quotes {
		name := NormalizeProvider(q.Provider)
		ts := q.ReceivedAt
		if ts.IsZero() {
			ts = now
		}

		key := Key{Provider: name, ProductID: q.ProductID}
		cur, ok := latest[key]
		row := Latest{Provider: name, ProductID: q.ProductID, Price: q.Price, Samples: cur.Samples + 1, ReceivedAt: ts}
		if ok && ts.Before(cur.ReceivedAt) {
			cur.Samples++
			row = cur
		}
		latest[key] = row
	}

	out := make([]Latest, 0, len(latest))
	for _, v := range latest {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return NaturalLess(out[i].Provider, out[j].Provider)
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}

// Summarize computes count, extremes and mean. Ties for cheapest or dearest
// go to the first quote in input order. An empty input yields a zero Summary.
func Summarize(quotes []provider.Quote) Summary {
	if len(quotes) == 0 {
		return Summary{}
	}
	s := Summary{Count: len(quotes), Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, q := range quotes {
		sum += q.Price
		if q.Price < s.Min {
			s.Min, s.Cheapest = q.Price, q.Provider
		}
		if q.Price > s.Max {
			s.Max, s.Dearest = q.Price, q.Provider
		}
	}
	s.Mean = sum / float64(len(quotes))
	return s
}

// NaturalLess compares strings treating runs of digits as numbers.
func NaturalLess(a, b string) bool {
	for a != "" && b != "" {
		ad, bd := leadingDigits(a), leadingDigits(b)
		if ad != "" && bd != "" {
			an, _ := strconv.ParseUint(ad, 10, 64)
			bn, _ := strconv.ParseUint(bd, 10, 64)
			if an != bn {
				return an < bn
			}
			a, b = a[len(ad):], b[len(bd):]
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && unicode.IsDigit(rune(s[i])) {
		i++
	}
	return s[:i]
}
