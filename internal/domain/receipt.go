package domain

// Receipt is a gateway-issued record of an executed action. The gateway
// controls the schema, so the document is kept as a generic JSON mapping;
// the fields below are the ones this service interprets.
type Receipt map[string]any

const (
	FieldReceiptID   = "receipt_id"
	FieldReceiptSig  = "receipt_sig"
	FieldPolicyHash  = "policy_hash"
	FieldConsentHash = "consent_snapshot_hash"
	FieldAnchor      = "anchor"
)

func (r Receipt) stringField(key string) string {
	v, ok := r[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (r Receipt) ReceiptID() string   { return r.stringField(FieldReceiptID) }
func (r Receipt) Signature() string   { return r.stringField(FieldReceiptSig) }
func (r Receipt) PolicyHash() string  { return r.stringField(FieldPolicyHash) }
func (r Receipt) ConsentHash() string { return r.stringField(FieldConsentHash) }

// SignedPayload returns a copy of the receipt without the fields that are
// not covered by the gateway signature. The signature cannot sign itself,
// and anchoring happens after signing, so both are stripped before the
// canonical form is computed.
func (r Receipt) SignedPayload() Receipt {
	out := make(Receipt, len(r))
	for k, v := range r {
		if k == FieldReceiptSig || k == FieldAnchor {
			continue
		}
		out[k] = v
	}
	return out
}

// AnchorRecord reports the anchor sub-structure, if present.
func (r Receipt) AnchorRecord() *AnchorRecord {
	raw, ok := r[FieldAnchor].(map[string]any)
	if !ok {
		return nil
	}
	record := &AnchorRecord{}
	if id, ok := raw["anchor_id"].(string); ok {
		record.AnchorID = id
	}
	if l2, ok := raw["l2_tx"].(map[string]any); ok {
		if tx, ok := l2["tx_hash"].(string); ok {
			record.L2Tx.TxHash = tx
		}
	}
	return record
}

// WithAnchor returns a copy of the receipt with the anchor record attached.
// The original mapping is left untouched; commitments computed from it stay
// valid.
func (r Receipt) WithAnchor(record AnchorRecord) Receipt {
	out := make(Receipt, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[FieldAnchor] = map[string]any{
		"anchor_id": record.AnchorID,
		"l2_tx": map[string]any{
			"tx_hash": record.L2Tx.TxHash,
		},
	}
	return out
}
