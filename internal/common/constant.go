package common

// SessionTokenHeaderName is the HTTP header used to carry the session token
// on outbound requests, in the form "Bearer <token>".
const SessionTokenHeaderName = "Authorization"

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6
