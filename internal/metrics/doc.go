// Package metrics records document session metrics.
//
// Components receive a Recorder and default to NoopRecorder, so nothing needs
// a nil check. The CLI swaps in a PrometheusRecorder when a textfile or a
// listen address is configured:
//
//	reg := prometheus.NewRegistry()
//	doc, err := document.Open(path, document.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//	...
//	err = metrics.WriteTextfile(cfg.Metrics.Textfile, reg)
package metrics
