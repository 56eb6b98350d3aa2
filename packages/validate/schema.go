package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/mirrorperf/packages/http"
	"github.com/xeipuuv/gojsonschema"
)

// TokenBalancesSchema describes GET /tokens/{id}/balances.
var TokenBalancesSchema = []byte(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["balances", "links"],
  "properties": {
    "timestamp": {"type": ["string", "null"], "pattern": "^\\d{1,10}(\\.\\d{1,9})?$"},
    "balances": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["account", "balance"],
        "properties": {
          "account": {"type": "string", "pattern": "^\\d{1,10}\\.\\d{1,10}\\.\\d{1,10}$"},
          "balance": {"type": "integer", "minimum": 0},
          "decimals": {"type": "integer", "minimum": 0}
        }
      }
    },
    "links": {
      "type": "object",
      "properties": {
        "next": {"type": ["string", "null"]}
      }
    }
  }
}`)

// MatchesSchema validates the response body against a JSON schema.
func MatchesSchema(resp *http.Response, schema []byte) error {
	if resp == nil {
		return errors.New("no response")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(resp.Body),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(violations, "; "))
}
