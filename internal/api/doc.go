// Package api hosts the console's HTTP surface. Notable routes:
//   - GET / renders the page; GET /fragments/... re-renders one panel.
//   - GET /ws pushes state changes to the page.
//   - /api/selection, /api/map and /api/jobs drive the controller.
//   - GET /download/{id} and /download-summary/{id} redirect to the backend exports.
//   - GET /healthz and /readyz for probes, GET /metrics for Prometheus.
package api
