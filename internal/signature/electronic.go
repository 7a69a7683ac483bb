package signature

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

// signerHash implements spec.md §4.6's
// signer_hash = H(document.digest ‖ signer_id ‖ timestamp ‖ nonce) for
// every signature type, not only ELECTRONIC — the formula is shared, only
// the payload and verified-computation differ per type.
func signerHash(documentDigest []byte, signerID idgen.ID, timestamp time.Time, nonce []byte) []byte {
	h := sha256.New()
	h.Write(documentDigest)
	h.Write(signerID[:])
	h.Write([]byte(timestamp.UTC().Format(time.RFC3339Nano)))
	h.Write(nonce)
	return h.Sum(nil)
}

// produceElectronic implements the ELECTRONIC per-type semantics: a
// rasterised image or text label payload, verified iff well-formed
// (non-empty).
func produceElectronic(_ *Engine, req SignRequest) (producedFields, error) {
	if len(req.Payload) == 0 {
		return producedFields{}, fmt.Errorf("signature: electronic payload must not be empty")
	}
	return producedFields{
		Payload:            req.Payload,
		VerificationMethod: "ELECTRONIC_WELLFORMED",
		Verified:           true,
	}, nil
}

func verifyElectronic(sig *model.Signature) (bool, error) {
	// There is nothing further to recompute for a raster/label payload:
	// well-formedness was checked once at production time.
	return sig.Verified, nil
}
