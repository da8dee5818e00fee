package prometheus

import (
	"github.com/datarhei/ffstats/source"

	"github.com/prometheus/client_golang/prometheus"
)

type sourcesCollector struct {
	registry source.Registry

	fpsDesc        *prometheus.Desc
	bitrateDesc    *prometheus.Desc
	speedDesc      *prometheus.Desc
	framesDesc     *prometheus.Desc
	sizeDesc       *prometheus.Desc
	dupFramesDesc  *prometheus.Desc
	dropFramesDesc *prometheus.Desc
	sourcesDesc    *prometheus.Desc
}

// NewSourcesCollector reports the stats of every source in the registry.
func NewSourcesCollector(r source.Registry) prometheus.Collector {
	labels := []string{"source"}

	return &sourcesCollector{
		registry: r,
		fpsDesc: prometheus.NewDesc(
			"ffstats_source_fps",
			"Current frame rate of a source",
			labels, nil),
		bitrateDesc: prometheus.NewDesc(
			"ffstats_source_bitrate_kbit",
			"Current bitrate of a source in kbit/s",
			labels, nil),
		speedDesc: prometheus.NewDesc(
			"ffstats_source_speed",
			"Current processing speed of a source relative to realtime",
			labels, nil),
		framesDesc: prometheus.NewDesc(
			"ffstats_source_frames",
			"Number of frames processed by a source",
			labels, nil),
		sizeDesc: prometheus.NewDesc(
			"ffstats_source_total_size_bytes",
			"Number of bytes written by a source",
			labels, nil),
		dupFramesDesc: prometheus.NewDesc(
			"ffstats_source_dup_frames",
			"Number of duplicated frames of a source",
			labels, nil),
		dropFramesDesc: prometheus.NewDesc(
			"ffstats_source_drop_frames",
			"Number of dropped frames of a source",
			labels, nil),
		sourcesDesc: prometheus.NewDesc(
			"ffstats_sources",
			"Number of sources by state",
			[]string{"state"}, nil),
	}
}

func (c *sourcesCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.fpsDesc
	ch <- c.bitrateDesc
	ch <- c.speedDesc
	ch <- c.framesDesc
	ch <- c.sizeDesc
	ch <- c.dupFramesDesc
	ch <- c.dropFramesDesc
	ch <- c.sourcesDesc
}

func (c *sourcesCollector) Collect(ch chan<- prometheus.Metric) {
	sources, err := c.registry.List("")
	if err != nil {
		return
	}

	states := map[source.State]float64{
		source.StateRunning:  0,
		source.StateFinished: 0,
	}

	for _, s := range sources {
		states[s.State]++

		ch <- prometheus.MustNewConstMetric(c.fpsDesc, prometheus.GaugeValue, s.Parsed.FPS, s.ID)
		ch <- prometheus.MustNewConstMetric(c.bitrateDesc, prometheus.GaugeValue, s.Parsed.Bitrate, s.ID)
		ch <- prometheus.MustNewConstMetric(c.speedDesc, prometheus.GaugeValue, s.Parsed.Speed, s.ID)
		ch <- prometheus.MustNewConstMetric(c.framesDesc, prometheus.CounterValue, float64(s.Stats.Frame), s.ID)
		ch <- prometheus.MustNewConstMetric(c.sizeDesc, prometheus.CounterValue, float64(s.Stats.TotalSize), s.ID)
		ch <- prometheus.MustNewConstMetric(c.dupFramesDesc, prometheus.CounterValue, float64(s.Stats.DupFrames), s.ID)
		ch <- prometheus.MustNewConstMetric(c.dropFramesDesc, prometheus.CounterValue, float64(s.Stats.DropFrames), s.ID)
	}

	for state, n := range states {
		ch <- prometheus.MustNewConstMetric(c.sourcesDesc, prometheus.GaugeValue, n, string(state))
	}
}
