// Package scraper reads cabinet cooling exporters into fleet snapshots.
//
// Each configured cabinet exposes Prometheus text exposition (power, coolant
// loop, cabinet temperature, liquid level, leak detector and per-server probe
// temperatures). prometheus.go maps those families onto a types.Enclosure;
// fleet.go scrapes all cabinets concurrently and assembles one FleetSnapshot.
// A missing family or a non-finite sample fails the whole cycle.
//
// Authentication (mTLS, API key, bearer token, basic) is handled by the
// shared authRoundTripper in base.go; each cabinet gets a pre-configured
// *http.Client from New().
package scraper
