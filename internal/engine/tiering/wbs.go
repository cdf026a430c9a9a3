package tiering

import (
	"fmt"

	"tiergate/internal/platform/procore"
)

// WBSKey is the derived identity that joins purchase-order line items to
// budget rows. Keys are tagged with the field they were derived from, so a
// code carrying an id never matches a code carrying only a flat code, even
// when they name the same budget line. That asymmetry is the documented
// consequence of the derivation priority and is kept intentionally.
type WBSKey string

// KeyForWBS derives the matching key for a WBS code with strict precedence:
// numeric id, then flat code, then description. A nil code or one with none
// of the three fields cannot be matched; ok is false and the caller must
// surface it as an error condition rather than drop the line.
func KeyForWBS(code *procore.WBSCode) (WBSKey, bool) {
	if code == nil {
		return "", false
	}
	if code.ID != nil {
		return WBSKey(fmt.Sprintf("id:%d", *code.ID)), true
	}
	if code.FlatCode != "" {
		return WBSKey("flat_code:" + code.FlatCode), true
	}
	if code.Description != "" {
		return WBSKey("description:" + code.Description), true
	}
	return "", false
}

func (k WBSKey) String() string {
	return string(k)
}
