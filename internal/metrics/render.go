// SPDX-License-Identifier: MIT
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons a reference is skipped while building tabs.
const (
	SkipEmptyTarget    = "empty_target"
	SkipMissingTarget  = "missing_target"
	SkipLoadFailed     = "load_failed"
	SkipMissingSubItem = "missing_sub_item"
)

var (
	rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reftabs_renders_total",
		Help: "Formatter renders by display style",
	}, []string{"style"}) // style=tab|accordion

	tabsRenderedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reftabs_tabs_rendered_total",
		Help: "Tabs produced by the formatter by display style",
	}, []string{"style"})

	referencesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reftabs_references_skipped_total",
		Help: "References skipped while building tabs by reason",
	}, []string{"reason"}) // reason=empty_target|missing_target|load_failed|missing_sub_item

	renderCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reftabs_render_cache_total",
		Help: "Field render cache lookups by result",
	}, []string{"result"}) // result=hit|miss

	fieldRenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reftabs_field_render_duration_seconds",
		Help:    "Time to render a field, including loading and theming",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"}) // outcome=success|not_found|error

	displaysLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reftabs_displays_loaded",
		Help: "Number of display configurations currently loaded",
	})

	displayReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reftabs_display_reloads_total",
		Help: "Display configuration reloads by outcome",
	}, []string{"outcome"}) // outcome=success|failure
)

// RecordTabsRendered counts one formatter render producing n tabs.
func RecordTabsRendered(style string, n int) {
	rendersTotal.WithLabelValues(style).Inc()
	tabsRenderedTotal.WithLabelValues(style).Add(float64(n))
}

// RecordReferenceSkipped counts a skipped reference.
func RecordReferenceSkipped(reason string) {
	referencesSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordCacheResult counts a render cache lookup.
func RecordCacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	renderCacheTotal.WithLabelValues(result).Inc()
}

// ObserveFieldRender records the duration of a field render.
func ObserveFieldRender(outcome string, d time.Duration) {
	fieldRenderDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// SetDisplaysLoaded sets the number of loaded display configurations.
func SetDisplaysLoaded(n int) {
	displaysLoaded.Set(float64(n))
}

// RecordDisplayReload counts a display configuration reload.
func RecordDisplayReload(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	displayReloadsTotal.WithLabelValues(outcome).Inc()
}
