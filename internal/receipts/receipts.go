// Package receipts computes the content hashes that make every fired
// alert independently verifiable: a config_hash over the canonical
// tunable subset, and a receipt_hash binding a specific rule firing to
// that config and its evidence.
//
// Ported from original_source/src/labelwatch/receipts.py, adapted to
// canonicalize.Hash instead of a hand-rolled stable_json.
package receipts

import (
	"github.com/unpingable/atproto-labelwatch/internal/canonicalize"
)

// ConfigHash hashes the canonical receipt-relevant subset of
// configuration, so every alert can be tied to the exact tunables that
// produced it.
func ConfigHash(receiptSubset interface{}) (string, error) {
	return canonicalize.Hash(receiptSubset)
}

// ReceiptHash binds a single rule firing to its inputs, evidence, and
// the config that evaluated it.
func ReceiptHash(ruleID, labelerDID, ts string, inputs map[string]interface{}, evidenceHashes []string, cfgHash string) (string, error) {
	payload := map[string]interface{}{
		"rule_id":         ruleID,
		"labeler_did":     labelerDID,
		"ts":              ts,
		"inputs":          inputs,
		"evidence_hashes": evidenceHashes,
		"config_hash":     cfgHash,
	}
	return canonicalize.Hash(payload)
}
