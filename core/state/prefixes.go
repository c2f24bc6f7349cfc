package state

// Storage key prefixes. Every record is keyed for direct lookup; nothing in
// the ledger ever scans a prefix range.
const (
	poolKeyPrefix     = "vault/pool/"
	positionKeyPrefix = "vault/position/"
	accountKeyPrefix  = "accounts/"
)

func poolKey(poolID string) []byte {
	return []byte(poolKeyPrefix + poolID)
}

// positionKey joins the pool ID with the owner's bech32 form; the encoded
// address contains no '|' so the key cannot collide across pools.
func positionKey(poolID, owner string) []byte {
	return []byte(positionKeyPrefix + poolID + "|" + owner)
}

func accountKey(addr string) []byte {
	return []byte(accountKeyPrefix + addr)
}
