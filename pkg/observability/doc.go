/*
Package observability turns engine lifecycle hooks into Prometheus metrics.

	m := observability.NewMetrics(prometheus.DefaultRegisterer)
	eng, err := tapestry.New(net, tapestry.WithLifecycleHooks(m.Hooks()))

One Metrics value can be shared by every session of a process.
*/
package observability
