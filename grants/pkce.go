package grants

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/mkaldis/go-token-service/oauth2"
)

// verifyCodeChallenge recomputes the PKCE transform from the presented
// verifier and compares it against the challenge stored at code-issuance
// time. No challenge stored and no verifier presented means PKCE was not
// in use for this code.
func verifyCodeChallenge(storedChallenge, verifier string, method oauth2.CodeMethodType) bool {
	if storedChallenge == "" && verifier == "" {
		return true
	}
	if storedChallenge == "" || verifier == "" {
		return false
	}
	switch method {
	case oauth2.CodeMethodTypeS256:
		hash := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(hash[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(storedChallenge)) == 1
	case oauth2.CodeMethodTypePlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(storedChallenge)) == 1
	}
	return false
}
