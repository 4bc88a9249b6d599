package middleware

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/k-laffite/water-quality-visualizer/internal/errors"
)

// Problem represents an RFC 7807 problem details object. It is the
// lightweight form used by middleware that must respond before a
// handler runs; handlers use the richer apierrors.ProblemDetails.
type Problem struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Status  int    `json:"status"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// Render writes the problem as an application/problem+json response
func (p Problem) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	return json.NewEncoder(w).Encode(p)
}

// problemByStatus carries the title and type URI for every status
// middleware responds with. The URIs match the error handler package,
// so middleware and handler responses stay consistent.
var problemByStatus = map[int]Problem{
	http.StatusBadRequest:            {Title: "Bad Request", Type: apierrors.TypeValidation},
	http.StatusForbidden:             {Title: "Forbidden", Type: apierrors.TypeForbidden},
	http.StatusNotFound:              {Title: "Not Found", Type: apierrors.TypeNotFound},
	http.StatusConflict:              {Title: "Conflict", Type: apierrors.TypeConflict},
	http.StatusRequestEntityTooLarge: {Title: "Payload Too Large", Type: apierrors.TypePayloadTooLarge},
	http.StatusUnsupportedMediaType:  {Title: "Unsupported Media Type", Type: apierrors.TypeUnsupportedMedia},
	http.StatusTooManyRequests:       {Title: "Too Many Requests", Type: apierrors.TypeRateLimit},
	http.StatusInternalServerError:   {Title: "Internal Server Error", Type: apierrors.TypeInternal},
	http.StatusServiceUnavailable:    {Title: "Service Unavailable", Type: apierrors.TypeServiceDown},
	http.StatusGatewayTimeout:        {Title: "Gateway Timeout", Type: apierrors.TypeTimeout},
}

// ProblemFromStatus creates a Problem for an HTTP status code.
// Statuses outside the table fall back to the stdlib status text.
func ProblemFromStatus(status int, detail, traceID string) Problem {
	p, ok := problemByStatus[status]
	if !ok {
		p = Problem{Type: "/errors/unknown", Title: http.StatusText(status)}
	}
	p.Status = status
	p.Detail = detail
	p.TraceID = traceID
	return p
}
