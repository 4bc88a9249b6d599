// Package http holds the HTTP handlers of the water quality visualizer.
//
// Handlers stay thin: they decode the request, call a service, and
// render the result. Parsing rules, statistics, and dataset state all
// live in internal/services; nothing in this package touches a CSV
// byte directly.
//
// Four handlers cover the API surface. DatasetHandler owns the dataset
// lifecycle (upload, summary, column statistics, histograms, export)
// plus the sample library. HealthHandler answers the liveness,
// readiness, version, and stats probes. ClientLogHandler ingests log
// batches from the frontend. FrontendHandler serves the embedded
// single-page UI with an index.html fallback for client-side routes.
//
// # Errors
//
// Failures render as RFC 7807 problem documents through
// errors.ErrorHandler:
//
//	{
//	    "type": "https://waterquality.dev/problems/column-not-found",
//	    "title": "Column Not Found",
//	    "status": 404,
//	    "detail": "Column 'turbidity' does not exist in the loaded dataset",
//	    "available_columns": ["site", "ph", "reading"]
//	}
//
// Service sentinels map to fixed statuses: a missing dataset is 404, an
// unparsable upload is 422, a bad parameter is 400.
//
// # Upload Content Negotiation
//
// POST /api/dataset accepts three body shapes and dispatches on the
// Content-Type header: multipart form data carrying a "file" part (CSV
// or XLSX), an application/json UploadRequest, or raw CSV text.
//
// # Testing
//
// Handler tests mount the chi routers over real in-memory services and
// drive them with httptest, asserting on status codes and the rendered
// JSON bodies rather than on internals.
package http
