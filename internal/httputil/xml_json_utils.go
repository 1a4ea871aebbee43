package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/clbanning/mxj/v2"
)

// DefaultMaxBodyBytes caps ingress bodies.
const DefaultMaxBodyBytes = 1 << 20

var ErrBodyTooLarge = errors.New("request body too large")

// ReadBody reads at most maxBytes of the request body.
func ReadBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrBodyTooLarge
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return body, nil
}

// IsXML reports whether the request declares an XML body.
func IsXML(r *http.Request) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	return strings.Contains(ct, "application/xml") || strings.Contains(ct, "text/xml")
}

// XMLToJSON converts an XML document to the equivalent JSON object, keyed by
// the root element. Attributes become "-name" keys, as mxj renders them.
func XMLToJSON(body []byte) ([]byte, error) {
	mv, err := mxj.NewMapXml(body)
	if err != nil {
		return nil, fmt.Errorf("invalid XML: %w", err)
	}
	if len(mv) == 0 {
		return nil, errors.New("invalid XML: empty document")
	}
	data, err := mv.Json()
	if err != nil {
		return nil, fmt.Errorf("failed to convert XML to JSON: %w", err)
	}
	return data, nil
}
