package crypto

// Context identifies the record a ciphertext belongs to. It is never stored
// in the blob; callers supply the same value on every encrypt, decrypt and
// migrate call for a stored secret.
type Context struct {
	TenantID string
	RecordID string
}

// AAD returns the additional authenticated data bound into the ciphertext.
func (c Context) AAD() []byte {
	return []byte("tenant:" + c.TenantID + "|rec:" + c.RecordID)
}
