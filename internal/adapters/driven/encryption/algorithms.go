// Package encryption implements the encrypted-assertion boundary: content
// encryption keys wrapped under the recipient's public key, assertion
// content encrypted under a fresh symmetric key per assertion.
package encryption

// XML-ENC algorithm URIs the engine can execute.
const (
	// Key transport.
	AlgRSAOAEP = "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
	AlgRSA15   = "http://www.w3.org/2001/04/xmlenc#rsa-1_5"

	// Block encryption.
	AlgAES128CBC = "http://www.w3.org/2001/04/xmlenc#aes128-cbc"
	AlgAES256CBC = "http://www.w3.org/2001/04/xmlenc#aes256-cbc"
	AlgAES128GCM = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	AlgAES256GCM = "http://www.w3.org/2009/xmlenc11#aes256-gcm"

	// Structure constants.
	xencNS      = "http://www.w3.org/2001/04/xmlenc#"
	dsigNS      = "http://www.w3.org/2000/09/xmldsig#"
	typeElement = "http://www.w3.org/2001/04/xmlenc#Element"
)

// DefaultEncryptionAlgorithms returns every algorithm URI the software
// provider can execute, block encryption and key transport alike.
func DefaultEncryptionAlgorithms() []string {
	return []string{
		AlgAES128CBC,
		AlgAES256CBC,
		AlgAES128GCM,
		AlgAES256GCM,
		AlgRSAOAEP,
		AlgRSA15,
	}
}

func algorithmAllowed(whitelist []string, uri string) bool {
	for _, allowed := range whitelist {
		if allowed == uri {
			return true
		}
	}
	return false
}

func keySizeFor(alg string) (int, bool) {
	switch alg {
	case AlgAES128CBC, AlgAES128GCM:
		return 16, true
	case AlgAES256CBC, AlgAES256GCM:
		return 32, true
	}
	return 0, false
}

func isGCM(alg string) bool {
	return alg == AlgAES128GCM || alg == AlgAES256GCM
}
