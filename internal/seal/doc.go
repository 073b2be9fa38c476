// Package seal is the encryption engine for record payloads.
//
// Payloads are sealed with an AEAD scheme whose name travels with the
// ciphertext (record.EncryptedData.Scheme). Open dispatches on that name, so
// records sealed by an older scheme stay readable after the default changes.
//
// The associated data binds a ciphertext to its chain slot (host, tag,
// version, idx). A relay that moves a ciphertext into another slot produces a
// record that fails to open.
//
// The engine holds no key material. Callers load a Key (see LoadKey) and pass
// it into every Seal/Open call.
package seal
