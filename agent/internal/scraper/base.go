package scraper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/rackwatch/rackwatch/agent/internal/config"
	"github.com/rackwatch/rackwatch/pkg/compute"
)

const defaultScrapeTimeout = 10 * time.Second

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the cabinet's auth and TLS settings.
func buildHTTPClient(cab config.Cabinet) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cab.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if cab.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(cab.Auth.CertFile, cab.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if cab.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(cab.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", cab.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	transport := &authRoundTripper{
		base: &http.Transport{TLSClientConfig: tlsCfg},
		auth: cab.Auth,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultScrapeTimeout,
	}, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	// Non-empty result with a non-nil err means partial parse (trailing lines,
	// format warnings). Treat as success.
	return mfs, nil
}

// metricValue returns the sample value of a gauge, counter or untyped metric.
func metricValue(m *dto.Metric) float64 {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return math.NaN()
}

// label returns the value of the named label on m, or "" when absent.
func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// sample finds the single sample of family name whose labels include match
// and returns its value. A missing family or sample and a non-finite value
// are errors.
func sample(mfs map[string]*dto.MetricFamily, name string, match map[string]string, key compute.MetricKey) (float64, error) {
	mf, ok := mfs[name]
	if !ok {
		return 0, fmt.Errorf("missing metric %s", name)
	}
	for _, m := range mf.GetMetric() {
		if !hasLabels(m, match) {
			continue
		}
		v := metricValue(m)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &compute.InvalidReadingError{Metric: key, Value: v}
		}
		return v, nil
	}
	return 0, fmt.Errorf("missing metric %s%s", name, formatLabels(match))
}

func hasLabels(m *dto.Metric, match map[string]string) bool {
	for k, v := range match {
		if label(m, k) != v {
			return false
		}
	}
	return true
}

func formatLabels(match map[string]string) string {
	if len(match) == 0 {
		return ""
	}
	out := "{"
	first := true
	for _, k := range []string{labelDirection, labelServer, labelProbe} {
		v, ok := match[k]
		if !ok {
			continue
		}
		if !first {
			out += ","
		}
		out += fmt.Sprintf("%s=%q", k, v)
		first = false
	}
	return out + "}"
}
