package airtel

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"

	"momogateway/internal/momo"
)

// encryptedPIN encrypts the disbursement PIN with Airtel's RSA public key
// (base64 DER, as distributed through their developer portal) and returns it
// base64-encoded.
func (a *Adapter) encryptedPIN() (string, error) {
	if a.config.DisbursePIN == "" || a.config.EncryptionKey == "" {
		return "", momo.NewError(momo.KindUpstreamValidation, momo.NetworkAirtel,
			"disbursement requires AIRTEL_DISBURSE_PIN and AIRTEL_ENCRYPTION_KEY", nil)
	}

	der, err := base64.StdEncoding.DecodeString(a.config.EncryptionKey)
	if err != nil {
		return "", momo.NewError(momo.KindInternal, momo.NetworkAirtel, "decode encryption key", err)
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return "", momo.NewError(momo.KindInternal, momo.NetworkAirtel, "parse encryption key", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return "", momo.NewError(momo.KindInternal, momo.NetworkAirtel, "encryption key is not RSA", nil)
	}

	cipher, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(a.config.DisbursePIN))
	if err != nil {
		return "", momo.NewError(momo.KindInternal, momo.NetworkAirtel, "encrypt pin", err)
	}

	return base64.StdEncoding.EncodeToString(cipher), nil
}
