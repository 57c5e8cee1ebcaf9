// Package internaldefs gathers synchronizer metrics into named, labeled families so the
// Prometheus and OTel exporters expose identical series.
package internaldefs
