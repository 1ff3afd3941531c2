// Package http exposes the defense scheduling service over JSON/HTTP.
//
// The router exposes the following endpoints. Every /defenses and
// /notifications route requires the caller id in the X-User-ID header, set by
// the authenticating proxy in front of this service.
//   - GET /defenses: list defenses. Query: from, to (RFC 3339), candidateId,
//     panelistId, mine=true|false, includeCancelled=true|false.
//   - GET /defenses/availability: busy intervals of people. Query: date
//     (YYYY-MM-DD) or from/to, userIds (comma separated or repeated).
//   - GET /defenses/{id}, PATCH /defenses/{id}, DELETE /defenses/{id}: read,
//     partially update, and cancel one defense.
//   - POST /defenses: schedule a defense. durationMins defaults to 60 and
//     bufferMins to 15.
//   - POST /defenses/{id}/duplicate: schedule a copy with optional overrides.
//   - POST /defenses/{id}/respond: accept or decline an invitation.
//   - POST /defenses/{id}/change-requests: the candidate asks for another slot.
//   - GET /notifications: the caller's inbox, newest first.
//   - GET /healthz and GET /metrics.
//
// Payloads use camelCase keys and UTC RFC 3339 instants. researcherId and
// examinerIds are accepted as aliases of candidateId and panelistIds. Errors
// are reported as {"error": {"kind", "message", "fields"}}.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
