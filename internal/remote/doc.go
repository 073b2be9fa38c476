// Package remote holds the relay wire protocol and its HTTP client.
//
// The relay stores opaque records on behalf of many users. Every request is
// authenticated with "Authorization: Token <token>"; the relay maps the token to
// a user and partitions all reads and writes by that user.
//
// Endpoints:
//
//	GET  /status                                    -> StatusResponse
//	POST /records        PushRequest                -> PushResponse
//	GET  /records?host=&tag=&start_idx=&limit=      -> RecordsResponse
package remote
