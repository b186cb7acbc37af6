package utils

const (
	// VersionHeaderName carries the calling app's version string, formatted
	// "major.minor(build)". Shipped clients send it on every request.
	VersionHeaderName = "FishIdentifierCam-Version"

	// AppCheckHeaderName carries the device/app attestation token. It is a
	// separate credential from the Authorization bearer token.
	AppCheckHeaderName = "X-App-Check"

	// TokenIssuer is the expected `iss` claim on identity tokens.
	TokenIssuer = "FishIdentifierCam"

	// LoginResultSuccess is the literal the login response must carry for a
	// client to consider itself logged in.
	LoginResultSuccess = "success"

	// StaticAttestationToken is accepted by the static verifier when real
	// attestation is disabled (local/emulated environments and tests).
	StaticAttestationToken = "FAKE_ATTESTATION_TOKEN"
)
