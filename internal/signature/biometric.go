package signature

import (
	"encoding/json"
	"fmt"

	"github.com/versafe/versafe-core/internal/store/model"
)

// defaultBiometricThreshold is the confidence floor from spec.md §4.6:
// "verified iff confidence ≥ configured threshold (default 0.9)".
const defaultBiometricThreshold = 0.9

// biometricPayload is the canonical on-disk shape of a BIOMETRIC
// Signature.Payload: the processed feature vector plus the confidence
// score the capture device reported.
type biometricPayload struct {
	Features   []byte  `json:"features"`
	Confidence float64 `json:"confidence"`
}

func produceBiometric(e *Engine, req SignRequest) (producedFields, error) {
	if len(req.Payload) == 0 {
		return producedFields{}, fmt.Errorf("signature: biometric payload must not be empty")
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return producedFields{}, fmt.Errorf("signature: biometric confidence %.4f out of [0,1]", req.Confidence)
	}

	encoded, err := json.Marshal(biometricPayload{Features: req.Payload, Confidence: req.Confidence})
	if err != nil {
		return producedFields{}, fmt.Errorf("signature: encode biometric payload: %w", err)
	}

	threshold := e.BiometricThreshold
	if threshold == 0 {
		threshold = defaultBiometricThreshold
	}
	return producedFields{
		Payload:             encoded,
		VerificationMethod:  "BIOMETRIC_CONFIDENCE_THRESHOLD",
		Verified:            req.Confidence >= threshold,
	}, nil
}

func verifyBiometric(sig *model.Signature) (bool, error) {
	// The confidence decision was made once, at capture time; there is no
	// raw biometric sample retained to re-score against.
	return sig.Verified, nil
}
