// Package server contains HTTP plumbing shared between the town API and any
// other JSON-over-HTTP surface the node exposes.
package server

import (
	"net/http"
	"net/url"
	"strings"
)

// NormalizeQueryValues replaces comma-separated values with individual values.
func NormalizeQueryValues(queryParams url.Values) {
	for key, vals := range queryParams {
		splitVals := make([]string, 0)
		for _, v := range vals {
			splitVals = append(splitVals, strings.Split(v, ",")...)
		}
		queryParams[key] = splitVals
	}
}

// NormalizeQueryValuesHandler normalizes an input query of "key=value1,value2,value3"
// to "key=value1&key=value2&key=value3".
func NormalizeQueryValuesHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		NormalizeQueryValues(query)
		r.URL.RawQuery = query.Encode()

		next.ServeHTTP(w, r)
	})
}
