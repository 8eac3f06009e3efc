// Package api defines the wire types of the genflow HTTP API.
//
// # API Overview
//
// genflow exposes its registered flows over a small REST surface:
//   - GET  /api/v1/flows               list flows
//   - GET  /api/v1/flows/{name}        flow detail with input and output schema
//   - POST /api/v1/flows/{name}/invoke run a flow; the body is the input object
//   - GET  /health, /healthz, /ready, /version
//
// Every response uses the envelope written by api/handlers:
//
//	{"success": true, "data": {...}, "timestamp": "...", "request_id": "..."}
//	{"success": false, "error": {"code": "INPUT_VALIDATION_FAILED", "message": "...", "fields": [...]}}
//
// # Authentication
//
// When API keys are configured, requests carry the X-API-Key header:
//
//	X-API-Key: your-api-key
//
// When a JWT secret is configured, requests may instead carry an HS256 bearer token:
//
//	Authorization: Bearer <token>
//
// Health endpoints are always public. Metrics are served on a separate port at /metrics.
package api
