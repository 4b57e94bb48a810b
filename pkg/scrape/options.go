package scrape

import (
	"net/url"
	"strconv"
)

// Default proxy pool for G2, which blocks datacenter IPs.
const DefaultProxyPool = "public_residential_pool"

// ReviewSelector is the element the backend waits for before capturing a
// review page.
const ReviewSelector = "//section[@id='reviews']//article"

// Options are the render options sent to the scraping backend with each page.
// Options is a value type: Merge returns a new value and never mutates the
// receiver, so a base configuration can be shared between pipelines.
type Options struct {
	// ASP enables the backend's anti-scraping protection bypass.
	ASP bool
	// RenderJS renders the page in a headless browser before capture.
	RenderJS bool
	// ProxyPool selects the backend proxy pool.
	ProxyPool string
	// AutoScroll scrolls to the bottom of the page before capture.
	AutoScroll bool
	// WaitForSelector delays capture until the selector matches.
	WaitForSelector string
	// BypassCache disables both the backend cache and the local page cache.
	BypassCache bool
	// Country pins the proxy exit country (empty for any).
	Country string
}

// BaseOptions returns the options required to get past G2's bot protection.
func BaseOptions() Options {
	return Options{
		ASP:       true,
		RenderJS:  true,
		ProxyPool: DefaultProxyPool,
	}
}

// Override holds optional per-call changes to Options. Nil fields keep the
// base value.
type Override struct {
	ASP             *bool
	RenderJS        *bool
	ProxyPool       *string
	AutoScroll      *bool
	WaitForSelector *string
	BypassCache     *bool
	Country         *string
}

// Merge applies the override and returns the resulting options.
func (o Options) Merge(ov Override) Options {
	if ov.ASP != nil {
		o.ASP = *ov.ASP
	}
	if ov.RenderJS != nil {
		o.RenderJS = *ov.RenderJS
	}
	if ov.ProxyPool != nil {
		o.ProxyPool = *ov.ProxyPool
	}
	if ov.AutoScroll != nil {
		o.AutoScroll = *ov.AutoScroll
	}
	if ov.WaitForSelector != nil {
		o.WaitForSelector = *ov.WaitForSelector
	}
	if ov.BypassCache != nil {
		o.BypassCache = *ov.BypassCache
	}
	if ov.Country != nil {
		o.Country = *ov.Country
	}
	return o
}

// ReviewOverride makes sure review markup has rendered before capture.
func ReviewOverride() Override {
	scroll := true
	selector := ReviewSelector
	return Override{
		AutoScroll:      &scroll,
		WaitForSelector: &selector,
	}
}

// FreshOverride forces every fetch past any cache.
func FreshOverride() Override {
	bypass := true
	return Override{BypassCache: &bypass}
}

// apply encodes the options as backend query parameters.
// backendCache is the account-level cache switch; BypassCache always wins.
func (o Options) apply(q url.Values, backendCache bool) {
	q.Set("asp", strconv.FormatBool(o.ASP))
	q.Set("render_js", strconv.FormatBool(o.RenderJS))
	if o.ProxyPool != "" {
		q.Set("proxy_pool", o.ProxyPool)
	}
	if o.AutoScroll {
		q.Set("auto_scroll", "true")
	}
	if o.WaitForSelector != "" {
		q.Set("wait_for_selector", o.WaitForSelector)
	}
	if o.Country != "" {
		q.Set("country", o.Country)
	}
	q.Set("cache", strconv.FormatBool(backendCache && !o.BypassCache))
}

// fingerprint identifies the rendered output for cache keys. Options that do
// not change the captured markup (cache flags) are excluded.
func (o Options) fingerprint() map[string]string {
	fp := map[string]string{
		"asp":       strconv.FormatBool(o.ASP),
		"render_js": strconv.FormatBool(o.RenderJS),
	}
	if o.AutoScroll {
		fp["auto_scroll"] = "true"
	}
	if o.WaitForSelector != "" {
		fp["wait_for_selector"] = o.WaitForSelector
	}
	if o.Country != "" {
		fp["country"] = o.Country
	}
	return fp
}
