package xmlsec

// XML-DSig algorithm URIs understood by the engine. The configured whitelist
// is the source of truth at runtime; this table only names what the library
// stack can actually execute.
const (
	AlgRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgRSASHA384 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha384"
	AlgRSASHA512 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"

	AlgEnvelopedSignature = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	AlgExclusiveC14N      = "http://www.w3.org/2001/10/xml-exc-c14n#"
)

// DefaultSignatureAlgorithms is the whitelist applied when the configuration
// names none.
func DefaultSignatureAlgorithms() []string {
	return []string{AlgRSASHA1, AlgRSASHA256, AlgRSASHA384, AlgRSASHA512}
}

func algorithmAllowed(whitelist []string, uri string) bool {
	for _, a := range whitelist {
		if a == uri {
			return true
		}
	}
	return false
}
