package validate

import (
	"github.com/abdul-hamid-achik/mirrorperf/packages/http"
	"github.com/tidwall/gjson"
)

// IsSuccess reports a 2xx status.
func IsSuccess(resp *http.Response) bool {
	return resp != nil && resp.IsSuccess()
}

// IsValidListResponse reports whether resp is a successful JSON response whose
// listName field is a non-empty array.
func IsValidListResponse(resp *http.Response, listName string) bool {
	if !IsSuccess(resp) || !gjson.ValidBytes(resp.Body) {
		return false
	}

	list := gjson.GetBytes(resp.Body, listName)
	if !list.IsArray() {
		return false
	}
	return len(list.Array()) > 0
}
