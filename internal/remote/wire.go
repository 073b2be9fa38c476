package remote

import "github.com/roach88/shellsync/internal/record"

// MaxPullLimit caps the number of records returned by one GET /records.
const MaxPullLimit = 1000

// AuthScheme prefixes the token in the Authorization header.
const AuthScheme = "Token"

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Hosts record.Status `json:"hosts"`
}

// PushRequest is the body of POST /records. Records of one chain must be in
// ascending idx order.
type PushRequest struct {
	Records []record.Record `json:"records"`
}

// PushResult reports whether the relay accepted one pushed record.
type PushResult struct {
	ID       record.ID `json:"id"`
	Accepted bool      `json:"accepted"`
	Error    string    `json:"error,omitempty"`
}

// PushResponse is the body returned by POST /records, one result per record
// in request order.
type PushResponse struct {
	Results []PushResult `json:"results"`
}

// RecordsResponse is the body of GET /records.
type RecordsResponse struct {
	Records []record.Record `json:"records"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
