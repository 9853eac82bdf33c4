package videoroom

import "encoding/json"

// messageBody is the plugin-specific "body" object carried by a message
// request. All fields are optional at the JSON level; each operation
// validates the ones it requires.
type messageBody struct {
	Request    string     `json:"request"`
	Publishers int        `json:"publishers"`
	Room       Identifier `json:"room"`
	Ptype      string     `json:"ptype"`
	Feed       Identifier `json:"feed"`
}

func parseBody(raw json.RawMessage) (*messageBody, *ProtocolError) {
	if len(raw) == 0 {
		return nil, errMissingKey("body")
	}
	var b messageBody
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, newErr(ErrJSONParse, "JSON parse failed: %v", err)
	}
	return &b, nil
}
