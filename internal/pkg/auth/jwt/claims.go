package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims issued to an authenticated account.
type Payload struct {
	// StandardClaims carries exp, iat and iss.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the account id as stored by the credential store.
	ID string `json:"id"`

	// Username is the account's username at issue time, used for logging only;
	// the credential store stays the source of truth.
	Username string `json:"username"`
}
